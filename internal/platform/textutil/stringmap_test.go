package textutil

import (
	"reflect"
	"testing"
)

func TestNormalizeStringMap(t *testing.T) {
	t.Run("trims keys and values", func(t *testing.T) {
		input := map[string]string{
			" batch_size ": " 500 ",
			"run_id":       " 01JD8G4Q ",
			"note":         "   ",
			"  ":           "dropped",
			"":             "dropped",
		}

		expected := map[string]string{
			"batch_size": "500",
			"run_id":     "01JD8G4Q",
			"note":       "",
		}

		if got := NormalizeStringMap(input); !reflect.DeepEqual(got, expected) {
			t.Fatalf("expected %#v, got %#v", expected, got)
		}
	})

	t.Run("collapses empty input to nil", func(t *testing.T) {
		if NormalizeStringMap(nil) != nil {
			t.Fatalf("nil input must stay nil")
		}
		if NormalizeStringMap(map[string]string{}) != nil {
			t.Fatalf("empty map must collapse to nil")
		}
		if NormalizeStringMap(map[string]string{" ": "x"}) != nil {
			t.Fatalf("map with only blank keys must collapse to nil")
		}
	})
}
