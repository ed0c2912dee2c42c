package flow

import (
	"testing"

	"github.com/friendmatch/FriendQuiz/internal/models"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	if c.Len() != 16 {
		t.Fatalf("expected 16 questions, got %d", c.Len())
	}

	key, err := c.Key(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "fav_color" {
		t.Errorf("expected first key fav_color, got %q", key)
	}

	text, err := c.Text(c.Len() - 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text == "" {
		t.Error("expected non-empty prompt for last question")
	}
}

func TestCatalogIndexOutOfRange(t *testing.T) {
	c := NewCatalog([]Question{{Key: "a", Text: "A?"}})

	for _, i := range []int{-1, 1, 100} {
		if _, err := c.Key(i); err != models.ErrIndexOutOfRange {
			t.Errorf("Key(%d): expected ErrIndexOutOfRange, got %v", i, err)
		}
		if _, err := c.Text(i); err != models.ErrIndexOutOfRange {
			t.Errorf("Text(%d): expected ErrIndexOutOfRange, got %v", i, err)
		}
	}
}

func TestCatalogOrderIsStable(t *testing.T) {
	c := NewCatalog([]Question{
		{Key: "b", Text: "B?"},
		{Key: "a", Text: "A?"},
	})
	first, _ := c.Key(0)
	second, _ := c.Key(1)
	if first != "b" || second != "a" {
		t.Errorf("catalog must preserve initialization order, got %q, %q", first, second)
	}
}
