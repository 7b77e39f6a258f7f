package proc

import "testing"

func TestTicketChannelName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Alice", "ticket-alice"},
		{"Bob Smith", "ticket-bob-smith"},
		{"émilie", "ticket-milie"},
		{"---", "ticket-member"},
		{"", "ticket-member"},
		{"🔥🔥🔥", "ticket-member"},
		{"user_42!", "ticket-user-42"},
	}
	for _, tc := range cases {
		if got := ticketChannelName(tc.in); got != tc.want {
			t.Errorf("ticketChannelName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
