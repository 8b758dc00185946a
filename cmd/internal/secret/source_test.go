package secret

import (
	"bytes"
	"strings"
	"testing"
)

func newTestSource(env map[string]string, terminal bool, typed string) (*Source, *int) {
	reads := 0
	s := NewSource("STEAD_TEST_SECRET", "rpc token")
	s.lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	s.isTerminal = func() bool { return terminal }
	s.readSecret = func() ([]byte, error) {
		reads++
		return []byte(typed), nil
	}
	s.prompt = &bytes.Buffer{}
	return s, &reads
}

func TestSourcePrefersEnvironment(t *testing.T) {
	s, reads := newTestSource(map[string]string{"STEAD_TEST_SECRET": " token "}, true, "typed")
	value, err := s.Get()
	if err != nil || value != "token" {
		t.Fatalf("unexpected result %q, %v", value, err)
	}
	if *reads != 0 {
		t.Fatalf("prompted despite env value")
	}
	if v, ok := s.FromEnv(); !ok || v != "token" {
		t.Fatalf("FromEnv returned %q, %v", v, ok)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	s, _ := newTestSource(map[string]string{"STEAD_TEST_SECRET": "  "}, true, "typed")
	if _, err := s.Get(); err == nil || !strings.Contains(err.Error(), "set but empty") {
		t.Fatalf("expected blank env error, got %v", err)
	}
	if _, ok := s.FromEnv(); ok {
		t.Fatalf("blank env must not be reported")
	}
}

func TestSourcePromptsOnceOnTerminal(t *testing.T) {
	s, reads := newTestSource(nil, true, "typed-token")
	for i := 0; i < 2; i++ {
		value, err := s.Get()
		if err != nil || value != "typed-token" {
			t.Fatalf("unexpected result %q, %v", value, err)
		}
	}
	if *reads != 1 {
		t.Fatalf("expected one prompt, got %d", *reads)
	}
}

func TestSourceWithoutTerminal(t *testing.T) {
	s, _ := newTestSource(nil, false, "")
	if _, err := s.Get(); err == nil || !strings.Contains(err.Error(), "STEAD_TEST_SECRET") {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}

func TestSourceRejectsEmptyInput(t *testing.T) {
	s, _ := newTestSource(nil, true, "   ")
	if _, err := s.Get(); err == nil || !strings.Contains(err.Error(), "cannot be empty") {
		t.Fatalf("expected empty input error, got %v", err)
	}
}
