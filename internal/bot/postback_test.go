package bot

import (
	"reflect"
	"testing"
)

func TestParsePostback(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		wantAction string
		wantParams map[string]string
		wantKeys   []string
		wantErr    bool
	}{
		{
			name:       "action only",
			data:       "action=tryme",
			wantAction: "tryme",
			wantParams: map[string]string{},
		},
		{
			name:       "agree with params",
			data:       "action=agree&celebImg=celebs/star&senderImg=senders/42&score=87&age=25",
			wantAction: "agree",
			wantParams: map[string]string{
				"celebImg":  "celebs/star",
				"senderImg": "senders/42",
				"score":     "87",
				"age":       "25",
			},
			wantKeys: []string{"celebImg", "senderImg", "score", "age"},
		},
		{
			name:       "value containing equals",
			data:       "action=agree&senderImg=a=b",
			wantAction: "agree",
			wantParams: map[string]string{"senderImg": "a=b"},
			wantKeys:   []string{"senderImg"},
		},
		{
			name:       "surrounding whitespace trimmed",
			data:       "  action=tryme&user_id=U1  ",
			wantAction: "tryme",
			wantParams: map[string]string{"user_id": "U1"},
			wantKeys:   []string{"user_id"},
		},
		{name: "empty", data: "", wantErr: true},
		{name: "whitespace only", data: "   ", wantErr: true},
		{name: "missing action prefix", data: "celebImg=a&action=agree", wantErr: true},
		{name: "no key value shape", data: "justtext", wantErr: true},
		{name: "empty action value", data: "action=", wantErr: true},
		{name: "segment without equals", data: "action=agree&oops", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb, err := ParsePostback(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParsePostback(%q) succeeded, want error", tt.data)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePostback(%q): %v", tt.data, err)
			}
			if pb.Action != tt.wantAction {
				t.Errorf("action = %q, want %q", pb.Action, tt.wantAction)
			}
			if !reflect.DeepEqual(pb.Params, tt.wantParams) {
				t.Errorf("params = %v, want %v", pb.Params, tt.wantParams)
			}
			if tt.wantKeys != nil && !reflect.DeepEqual(pb.Keys(), tt.wantKeys) {
				t.Errorf("keys = %v, want %v", pb.Keys(), tt.wantKeys)
			}
		})
	}
}

func TestPostbackValuesVerbatim(t *testing.T) {
	// Values are not URL-decoded; whatever rode the wire comes back.
	pb, err := ParsePostback("action=agree&celebImg=celebs%2Fstar")
	if err != nil {
		t.Fatalf("ParsePostback: %v", err)
	}
	if got, _ := pb.Get("celebImg"); got != "celebs%2Fstar" {
		t.Errorf("celebImg = %q, want the raw wire value", got)
	}
}
