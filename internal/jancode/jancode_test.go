package jancode

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"
)

func TestValidateAcceptsExactly13Digits(t *testing.T) {
	code, err := Validate("4901234567894")
	if err != nil {
		t.Fatalf("expected valid code, got %v", err)
	}
	if code != "4901234567894" {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestValidateRejectsNonConformingInput(t *testing.T) {
	cases := []string{
		"",
		"490123456789",    // 12 digits
		"49012345678941",  // 14 digits
		"490123456789a",   // trailing letter
		"4901-23456-789",  // separators
		" 4901234567894",  // leading space
		"４９０１２３４５６７８９４", // full-width digits
	}

	for _, input := range cases {
		_, err := Validate(input)
		if err == nil {
			t.Fatalf("expected %q to be rejected", input)
		}
		var formatErr *InvalidFormatError
		if !errors.As(err, &formatErr) {
			t.Fatalf("expected InvalidFormatError for %q, got %T", input, err)
		}
		if want := utf8.RuneCountInString(input); formatErr.Length != want {
			t.Fatalf("expected length %d surfaced for %q, got %d", want, input, formatErr.Length)
		}
		if !strings.Contains(err.Error(), input) {
			t.Fatalf("expected raw text in message, got %q", err.Error())
		}
	}
}

func TestSanitizeStripsAndTruncates(t *testing.T) {
	cases := map[string]string{
		"4901-2345-6789-4":  "4901234567894",
		"abc49012345678941": "4901234567894", // truncated at 13
		"":                  "",
		"jan code":          "",
		"12 34":             "1234",
	}
	for input, want := range cases {
		if got := Sanitize(input); got != want {
			t.Fatalf("Sanitize(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestEntryFiresOnceAfterDebounce(t *testing.T) {
	var mu sync.Mutex
	var fired []string
	entry := NewEntry(func(code string) {
		mu.Lock()
		fired = append(fired, code)
		mu.Unlock()
	})

	// Rapid keystrokes ending in a complete code.
	entry.Update("490123456789")
	entry.Update("4901234567894")

	time.Sleep(3 * DebounceDelay)

	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 1 || fired[0] != "4901234567894" {
		t.Fatalf("expected exactly one trigger with the full code, got %v", fired)
	}
}

func TestEntryDoesNotFireWhenValueChanges(t *testing.T) {
	var mu sync.Mutex
	count := 0
	entry := NewEntry(func(string) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	entry.Update("4901234567894")
	// Operator keeps editing before the debounce settles.
	entry.Update("490123456789")

	time.Sleep(3 * DebounceDelay)

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Fatalf("expected no trigger after the value changed, got %d", count)
	}
}

func TestEntryResetDisarmsPendingTrigger(t *testing.T) {
	var mu sync.Mutex
	count := 0
	entry := NewEntry(func(string) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	entry.Update("4901234567894")
	entry.Reset()

	time.Sleep(3 * DebounceDelay)

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Fatalf("expected no trigger after reset, got %d", count)
	}
	if entry.Value() != "" {
		t.Fatalf("expected empty value after reset, got %q", entry.Value())
	}
}
