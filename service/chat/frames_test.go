package chat

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestParseEnvelopeAliases(t *testing.T) {
	cases := map[string]string{
		`{"event":"addUser","data":"u1"}`:           EventIdentify,
		`{"event":"sendMessage","data":{}}`:         EventSendMessage,
		`{"event":"typing","data":{}}`:              EventTypingStart,
		`{"event":"stopTyping","data":{}}`:          EventTypingStop,
		`{"event":"sendNotification","data":{}}`:    EventTriggerNotification,
		`{"event":"trigger-notification","data":1}`: EventTriggerNotification,
	}
	for raw, want := range cases {
		env, err := ParseEnvelope([]byte(raw))
		if err != nil {
			t.Fatalf("%s: %v", raw, err)
		}
		if env.Event != want {
			t.Errorf("%s: event = %s, want %s", raw, env.Event, want)
		}
	}
	for _, bad := range []string{`not json`, `{"data":1}`, `[]`} {
		if _, err := ParseEnvelope([]byte(bad)); err == nil {
			t.Errorf("%s: expected error", bad)
		}
	}
}

func TestParseIdentify(t *testing.T) {
	for raw, want := range map[string]string{`"u1"`: "u1", `{"userId":"u2"}`: "u2", `{"userId":42}`: "42"} {
		got, err := parseIdentify(json.RawMessage(raw))
		if err != nil || got != want {
			t.Errorf("%s: got %q, %v", raw, got, err)
		}
	}
	for _, raw := range []string{`""`, `{}`, `null`, `{`} {
		if _, err := parseIdentify(json.RawMessage(raw)); err == nil {
			t.Errorf("%s: expected error", raw)
		}
	}
}

func TestEncodeFrameKeepsRawBytes(t *testing.T) {
	raw := json.RawMessage(`{"text":"hi","receiverId":"B","extra":[1,2]}`)
	frame, err := EncodeFrame(EventMessageDelivered, raw)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"event":"message-delivered","data":{"text":"hi","receiverId":"B","extra":[1,2]}}`
	if string(frame) != want {
		t.Errorf("frame = %s", frame)
	}

	// 空白和 <>& 都不能被改写
	raw = json.RawMessage(`{"receiverId": "B",  "text": "a<b & c>d"}`)
	frame, err = EncodeFrame(EventMessageDelivered, raw)
	if err != nil {
		t.Fatal(err)
	}
	want = `{"event":"message-delivered","data":` + string(raw) + `}`
	if string(frame) != want {
		t.Errorf("frame = %s", frame)
	}
	env, err := ParseEnvelope(frame)
	if err != nil || !bytes.Equal(env.Data, raw) {
		t.Errorf("round trip data = %s, %v", env.Data, err)
	}

	if _, err := EncodeFrame(EventMessageDelivered, json.RawMessage(`{"text":`)); err == nil {
		t.Error("truncated raw data must be rejected")
	}
}

func TestEncodeFrameStructsUnescaped(t *testing.T) {
	frame, err := EncodeFrame(EventPresenceSnapshot, map[string]string{"text": "x<y"})
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"event":"presence-snapshot","data":{"text":"x<y"}}`; string(frame) != want {
		t.Errorf("frame = %s", frame)
	}
	frame, _ = EncodeFrame(EventPresenceSnapshot, json.RawMessage(nil))
	if want := `{"event":"presence-snapshot"}`; string(frame) != want {
		t.Errorf("empty data frame = %s", frame)
	}
}
