package types_test

import (
	"encoding/json"
	"testing"

	"github.com/snehjoshi/replayconsole/internal/types"
)

func TestMessageText_Decode(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		wantText string
		wantLong bool
		wantGrip bool
	}{
		{"plain string", `"hello"`, "hello", false, false},
		{"long string", `{"type":"longString","initial":"hel"}`, "hel", true, false},
		{"object grip", `{"type":"object","class":"Error"}`, "", false, true},
	}
	for _, tc := range cases {
		var mt types.MessageText
		if err := json.Unmarshal([]byte(tc.in), &mt); err != nil {
			t.Fatalf("%s: unmarshal: %v", tc.name, err)
		}
		if mt.Text != tc.wantText || mt.LongString != tc.wantLong || mt.IsGrip() != tc.wantGrip {
			t.Errorf("%s: got %+v", tc.name, mt)
		}
		out, err := json.Marshal(mt)
		if err != nil {
			t.Fatalf("%s: marshal: %v", tc.name, err)
		}
		if tc.wantGrip && string(out) != tc.in {
			t.Errorf("%s: grip not kept as received: %s", tc.name, out)
		}
	}
}

func TestMessage_CloneCopiesGrip(t *testing.T) {
	m := &types.Message{ID: "1", MessageText: &types.MessageText{Grip: []byte(`{"type":"object"}`)}}
	c := m.Clone()
	c.MessageText.Grip[2] = 'X'
	if string(m.MessageText.Grip) != `{"type":"object"}` {
		t.Errorf("clone shares grip bytes with the original: %s", m.MessageText.Grip)
	}
}
