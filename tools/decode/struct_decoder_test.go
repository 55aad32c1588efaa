package decode

import (
	"errors"
	"testing"

	"SocialNet/tools/errs"
)

type payload struct {
	SenderID   string `json:"senderId"`
	Count      int    `json:"count"`
	RelatedRef string `json:"relatedPostId"`
}

func TestDecodeJSONWeak(t *testing.T) {
	p, err := DecodeJSON[payload]([]byte(`{"senderId":"a","count":"3","relatedPostId":"p7"}`))
	if err != nil {
		t.Fatalf("DecodeJSON() error = %v", err)
	}
	if p.SenderID != "a" || p.Count != 3 || p.RelatedRef != "p7" {
		t.Errorf("unexpected payload %+v", p)
	}
}

func TestDecodeJSONInvalid(t *testing.T) {
	_, err := DecodeJSON[payload]([]byte(`{not json`))
	if !errors.Is(err, errs.ErrArgs) {
		t.Errorf("expected ArgsError, got %v", err)
	}
}

func TestDecodeNil(t *testing.T) {
	if _, err := Decode[payload](nil); err == nil {
		t.Error("expected error for nil input")
	}
}

func TestReadString(t *testing.T) {
	m := map[string]any{"userId": "u1", "n": float64(12), "o": map[string]any{}}
	if v, ok := ReadString(m, "userId"); !ok || v != "u1" {
		t.Errorf("ReadString(userId) = %q, %v", v, ok)
	}
	if v, ok := ReadString(m, "n"); !ok || v != "12" {
		t.Errorf("ReadString(n) = %q, %v", v, ok)
	}
	if _, ok := ReadString(m, "o"); ok {
		t.Error("object should not read as string")
	}
}
