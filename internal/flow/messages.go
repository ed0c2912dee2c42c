package flow

// Fixed user-facing message texts. Rendering is cosmetic; the flow logic only
// cares about which message is selected.
const (
	msgFillIntro  = "Привет! Заполним твою анкету. Отвечай искренне — потом подруга попробует угадать!"
	msgGuessIntro = "Играем! Я покажу вопросы, а ты угадывай ответы подруги."

	msgFillPromptFormat  = "Вопрос %d. %s"
	msgGuessPromptFormat = "Угадай: %s"

	msgFillDonePrefix = "Готово! Отправь эту ссылку подруге, пусть попробует угадать твои ответы:\n"
	msgScoreFormat    = "Совпадений: %d/%d — %d%%\n%s"

	msgBadLink            = "Неверная ссылка. Попроси подругу прислать новую."
	msgProfileMissing     = "Не нашла анкету подруги. Пусть она сначала заполнит её."
	msgGuesserUnresolved  = "Обнови /start и попробуй снова."
	msgScoringUnavailable = "Сейчас недоступно вычислить совпадения (БД). Попробуйте позже."
)

// GenericFailureMessage is the fixed apologetic reply used when message
// handling fails for an unexpected reason. It is exported for the dispatcher.
const GenericFailureMessage = "Что-то пошло не так. Отправь /start и попробуй ещё раз."

// Commentary tiers, selected by the highest percentage threshold satisfied.
const (
	commentTier90      = "Вы — одно целое! 💞"
	commentTier70      = "Вы знаете друг друга почти идеально! ✨"
	commentTier50      = "Очень неплохо! Ещё чуть-чуть — и будет топ! 😊"
	commentTier30      = "Есть над чем посмеяться и что обсудить! 😄"
	commentTierDefault = "Главное — дружить и узнавать друг друга! 💖"
)
