package vclock

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

func TestActionJSONWireShape(t *testing.T) {
	b, err := json.Marshal([]Action{ScaleAction(2), OffsetAction(-300).WithNote(" 倒回 "), FreezeAction()})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	want := `[{"type":"scale","value":2},{"type":"offset","value":-300,"note":"倒回"},{"type":"freeze","value":0}]`
	if string(b) != want {
		t.Fatalf("got=%s\nwant=%s", b, want)
	}
}

func TestActionUnmarshalStrict(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Action
		wantErr error
	}{
		{name: "scale", input: `{"type":"scale","value":0.5}`, want: ScaleAction(0.5)},
		{name: "case insensitive", input: `{"type":"OFFSET","value":60,"note":"n"}`, want: OffsetAction(60).WithNote("n")},
		{name: "freeze without value", input: `{"type":"freeze"}`, want: FreezeAction()},
		{name: "unknown type", input: `{"type":"rewind","value":1}`, wantErr: ErrInvalidAction},
		{name: "missing value", input: `{"type":"offset"}`, wantErr: ErrInvalidAction},
		{name: "not an object", input: `"scale"`, wantErr: ErrInvalidAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Action
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err=%v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got=%+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeActions(t *testing.T) {
	for _, raw := range []string{"", "  ", "null", "[]"} {
		got, err := DecodeActions(raw)
		if err != nil || got == nil || len(got) != 0 {
			t.Fatalf("DecodeActions(%q)=%v, %v", raw, got, err)
		}
	}

	got, err := DecodeActions(`[{"type":"offset","value":5},{"type":"freeze","value":0}]`)
	if err != nil || len(got) != 2 || got[1].Kind != KindFreeze {
		t.Fatalf("got=%v err=%v", got, err)
	}

	if _, err := DecodeActions(`[{"type":"offset"`); err == nil {
		t.Fatalf("expected error for truncated payload")
	}
}

func TestEncodeActionsEmpty(t *testing.T) {
	got, err := EncodeActions(nil)
	if err != nil || got != "[]" {
		t.Fatalf("got=%q err=%v", got, err)
	}
}

func TestActionValidate(t *testing.T) {
	if err := OffsetAction(math.Inf(1)).Validate(); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("inf offset err=%v", err)
	}
	if err := ScaleAction(math.NaN()).Validate(); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("nan scale err=%v", err)
	}
	if err := ScaleAction(-0.1).Validate(); !errors.Is(err, ErrInvalidSpeed) {
		t.Fatalf("negative scale err=%v", err)
	}
	if err := ScaleAction(0).Validate(); err != nil {
		t.Fatalf("pause err=%v", err)
	}
	if !IsInputError(ScaleAction(-1).Validate()) {
		t.Fatalf("negative speed should be an input error")
	}
}

func TestParseAndFormatTimestamp(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	ts, err := ParseTimestamp(" 2024-06-01 12:00:00 ", shanghai)
	if err != nil {
		t.Fatalf("ParseTimestamp error: %v", err)
	}
	if ts.UTC().Hour() != 4 {
		t.Fatalf("utc hour=%d, want 4", ts.UTC().Hour())
	}
	if got := FormatTimestamp(ts, shanghai); got != "2024-06-01 12:00:00" {
		t.Fatalf("got=%q", got)
	}
	if got := FormatTimestamp(time.Time{}, shanghai); got != "" {
		t.Fatalf("zero time formatted as %q", got)
	}

	for _, bad := range []string{"", "2024-06-01", "2024-06-01T12:00:00", "2024-13-01 00:00:00", "tomorrow"} {
		if _, err := ParseTimestamp(bad, time.UTC); !errors.Is(err, ErrInvalidTimestamp) {
			t.Fatalf("ParseTimestamp(%q) err=%v", bad, err)
		}
	}
}
