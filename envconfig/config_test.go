// config_test.go - Tests fuer die Environment-Konfiguration
package envconfig

import (
	"testing"
)

func TestVarTrimsQuotesAndSpaces(t *testing.T) {
	cases := map[string]string{
		"value":       "value",
		" value ":     "value",
		`"value"`:     "value",
		`'value'`:     "value",
		` "value" `:   "value",
		"":            "",
	}

	for in, want := range cases {
		t.Setenv("TEXTEMBED_TEST_VAR", in)
		if got := Var("TEXTEMBED_TEST_VAR"); got != want {
			t.Errorf("Var(%q) = %q, erwartet %q", in, got, want)
		}
	}
}

func TestFlashAttention(t *testing.T) {
	cases := map[string]bool{
		"":      true,
		"1":     true,
		"true":  true,
		"0":     false,
		"false": false,
	}

	for in, want := range cases {
		t.Setenv("TEXTEMBED_FLASH_ATTENTION", in)
		if got := FlashAttention(true); got != want {
			t.Errorf("TEXTEMBED_FLASH_ATTENTION=%q: got %v, erwartet %v", in, got, want)
		}
	}
}

func TestNumThreads(t *testing.T) {
	cases := map[string]uint{
		"":    0,
		"4":   4,
		"abc": 0,
	}

	for in, want := range cases {
		t.Setenv("TEXTEMBED_NUM_THREADS", in)
		if got := NumThreads(); got != want {
			t.Errorf("TEXTEMBED_NUM_THREADS=%q: got %v, erwartet %v", in, got, want)
		}
	}
}

func TestAsMapCoversAllVars(t *testing.T) {
	m := AsMap()
	for _, key := range []string{"TEXTEMBED_DEBUG", "TEXTEMBED_FLASH_ATTENTION", "TEXTEMBED_MODELS", "TEXTEMBED_NUM_THREADS"} {
		e, ok := m[key]
		if !ok {
			t.Errorf("%s fehlt in AsMap", key)
			continue
		}
		if e.Name != key || e.Description == "" {
			t.Errorf("unvollstaendiger Eintrag fuer %s: %+v", key, e)
		}
	}
}
