package maxapi

import (
	"testing"

	"prodmax/internal/bot"
)

func TestParseUpdate(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		want   bot.Incoming
		wantOK bool
	}{
		{
			name: "message created",
			body: `{"update_type":"message_created","timestamp":1,
				"message":{"sender":{"user_id":42,"first_name":"Ann","last_name":"Lee"},
				"recipient":{"chat_id":900,"chat_type":"dialog","user_id":7},
				"body":{"mid":"m1","text":"/tasks"}}}`,
			want:   bot.Incoming{MaxUserID: 42, Name: "Ann Lee", Text: "/tasks", Recipient: bot.Recipient{ChatID: 900}},
			wantOK: true,
		},
		{
			name: "callback with object payload",
			body: `{"update_type":"message_callback",
				"callback":{"callback_id":"c1","payload":"{\"command\":\"/pomodoro start\"}","user":{"user_id":42,"name":"Ann"}},
				"message":{"recipient":{"chat_id":900}}}`,
			want:   bot.Incoming{MaxUserID: 42, Name: "Ann", Text: "/pomodoro start", Recipient: bot.Recipient{ChatID: 900}},
			wantOK: true,
		},
		{
			name:   "callback with bare command",
			body:   `{"update_type":"message_callback","callback":{"payload":"/stats","user":{"user_id":5}}}`,
			want:   bot.Incoming{MaxUserID: 5, Text: "/stats"},
			wantOK: true,
		},
		{
			name:   "callback with top-level payload object",
			body:   `{"update_type":"message_callback","user_id":5,"payload":{"command":"/habits"}}`,
			want:   bot.Incoming{MaxUserID: 5, Text: "/habits"},
			wantOK: true,
		},
		{
			name:   "callback user from message sender",
			body:   `{"update_type":"message_callback","payload":"\"/help\"","message":{"sender":{"user_id":8},"recipient":{"chat_id":3}}}`,
			want:   bot.Incoming{MaxUserID: 8, Text: "/help", Recipient: bot.Recipient{ChatID: 3}},
			wantOK: true,
		},
		{
			name: "callback without command",
			body: `{"update_type":"message_callback","callback":{"payload":"{}","user":{"user_id":5}}}`,
		},
		{
			name:   "legacy flat form",
			body:   `{"user_id":11,"text":"/help"}`,
			want:   bot.Incoming{MaxUserID: 11, Text: "/help"},
			wantOK: true,
		},
		{
			name: "bot started",
			body: `{"update_type":"bot_started","user":{"user_id":11}}`,
		},
		{
			name: "message without sender",
			body: `{"update_type":"message_created","message":{"body":{"text":"hi"}}}`,
			want: bot.Incoming{Text: "hi"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := ParseUpdate([]byte(tt.body))
			if err != nil {
				t.Fatalf("ParseUpdate() error: %v", err)
			}
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantOK && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseUpdate_Malformed(t *testing.T) {
	if _, _, err := ParseUpdate([]byte(`{not json`)); err == nil {
		t.Fatal("expected decode error")
	}
}
