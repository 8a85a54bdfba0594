package assist

import "testing"

func TestParseScores(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		efficiency  int
		scalability int
	}{
		{"both present", "analysis...\nEFFICIENCY_SCORE: 85\nSCALABILITY_SCORE: 60", 85, 60},
		{"absent", "no scores here", 50, 50},
		{"only one", "EFFICIENCY_SCORE: 70", 70, 50},
		{"out of range", "EFFICIENCY_SCORE: 250\nSCALABILITY_SCORE: -4", 100, 0},
		{"with suffix", "EFFICIENCY_SCORE: 85/100\nSCALABILITY_SCORE: 40 (fair)", 85, 40},
		{"not a number", "EFFICIENCY_SCORE: high\nSCALABILITY_SCORE: 30", 50, 30},
		{"last wins", "EFFICIENCY_SCORE: 10\nEFFICIENCY_SCORE: 90", 90, 50},
		{"crlf", "EFFICIENCY_SCORE: 65\r\nSCALABILITY_SCORE: 55\r\n", 65, 55},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ParseScores(tt.reply)
			if m.Efficiency != tt.efficiency || m.Scalability != tt.scalability {
				t.Errorf("got (%d, %d), want (%d, %d)", m.Efficiency, m.Scalability, tt.efficiency, tt.scalability)
			}
		})
	}
}
