package masking

import "testing"

func TestCleanOutput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "think block and preamble",
			raw:  "<think>\nlooking for names\n</think>\n\nHere is the masked text:\n[NAME] lives at [ADDRESS].\nCall [PHONE].",
			want: "[NAME] lives at [ADDRESS]. Call [PHONE].",
		},
		{
			name: "no think block",
			raw:  "  [NAME] signed on [DATE].  ",
			want: "[NAME] signed on [DATE].",
		},
		{
			name: "commentary only falls back to text",
			raw:  "The text contains no PII.",
			want: "The text contains no PII.",
		},
		{
			name: "unterminated think is left alone",
			raw:  "<think> still thinking\n[EMAIL] is the contact",
			want: "<think> still thinking [EMAIL] is the contact",
		},
		{
			name: "This and I've lines dropped",
			raw:  "I've replaced the names.\n[NAME] agrees.\nThis keeps structure.",
			want: "[NAME] agrees.",
		},
		{
			name: "empty",
			raw:  "<think></think>   ",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanOutput(tt.raw); got != tt.want {
				t.Fatalf("CleanOutput() = %q, want %q", got, tt.want)
			}
		})
	}
}
