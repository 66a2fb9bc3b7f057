package identity

import (
	"testing"

	"helpdesk/internal/domain"
)

func TestResolveWebFallbacks(t *testing.T) {
	cases := []struct {
		name string
		p    domain.WebParticipant
		want string
	}{
		{"full profile", domain.WebParticipant{UserID: "u1", Name: "Dana", Email: "d@x.com"}, "Dana"},
		{"email only", domain.WebParticipant{UserID: "u1", Email: "d@x.com"}, "d@x.com"},
		{"anonymous", domain.WebParticipant{UserID: "u1"}, "u1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Resolve(&domain.Session{Channel: domain.ChannelWeb, Participant: tc.p})
			if d.Name != tc.want {
				t.Errorf("name = %q, want %q", d.Name, tc.want)
			}
			if d.Avatar != "" {
				t.Errorf("web participants carry no avatar, got %q", d.Avatar)
			}
		})
	}
}

func TestResolveDiscord(t *testing.T) {
	d := Resolve(&domain.Session{
		Channel:     domain.ChannelDiscord,
		Participant: domain.DiscordParticipant{Username: "gamer", Avatar: "https://cdn/av.png"},
	})
	if d.Name != "gamer" || d.Avatar != "https://cdn/av.png" {
		t.Errorf("display = %+v", d)
	}
}

func TestResolveTelegram(t *testing.T) {
	d := Resolve(&domain.Session{
		Channel:     domain.ChannelTelegram,
		Participant: domain.TelegramParticipant{Username: "tg_user"},
	})
	if d.Name != "tg_user" {
		t.Errorf("display = %+v", d)
	}
}

func TestResolveMissingParticipant(t *testing.T) {
	d := Resolve(&domain.Session{Channel: domain.ChannelWeb})
	if d.Name != "unknown" {
		t.Errorf("name = %q, want unknown", d.Name)
	}
}
