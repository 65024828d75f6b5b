package mqtt

import "testing"

func TestTopics(t *testing.T) {
	cases := []struct {
		got  string
		want string
	}{
		{TopicTerminalSay("emotag"), "emotag/terminal/+/say"},
		{TopicTerminalOnline("home/emotag"), "home/emotag/terminal/+/online"},
		{TopicPlan("emotag", "t1", "r1"), "emotag/terminal/t1/plan/r1"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("got=%s want=%s", tc.got, tc.want)
		}
	}
}

func TestParseTerminalTopic(t *testing.T) {
	tt, err := ParseTerminalTopic("home/emotag/terminal/t42/say", "home/emotag")
	if err != nil || tt.TerminalID != "t42" || tt.Kind != "say" || len(tt.Rest) != 0 {
		t.Fatalf("got=(%+v,%v) want t42/say", tt, err)
	}
	tt, err = ParseTerminalTopic("emotag/terminal/t1/plan/r9", "emotag")
	if err != nil || tt.Kind != "plan" || len(tt.Rest) != 1 || tt.Rest[0] != "r9" {
		t.Fatalf("got=(%+v,%v) want plan r9", tt, err)
	}

	bad := []string{
		"emotag/terminal/t1",
		"other/terminal/t1/say",
		"emotagx/terminal/t1/say",
		"emotag/device/t1/say",
		"emotag/terminal//say",
	}
	for _, topic := range bad {
		if _, err := ParseTerminalTopic(topic, "emotag"); err == nil {
			t.Fatalf("expected error for %s", topic)
		}
	}
}

func TestValidRequestID(t *testing.T) {
	cases := map[string]bool{
		"r1":                                   true,
		"6f1c2a9e-3b8d-4c1e-9f0a-1b2c3d4e5f60": true,
		"":                                     false,
		"a/b":                                  false,
		"a+":                                   false,
		"#":                                    false,
	}
	for id, want := range cases {
		if got := validRequestID(id); got != want {
			t.Fatalf("validRequestID(%q)=%v, want %v", id, got, want)
		}
	}
}
