package archive

import "testing"

func TestParseFailurePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    FailurePolicy
		wantErr bool
	}{
		{"", PolicyHalt, false},
		{"halt", PolicyHalt, false},
		{" Continue ", PolicyContinue, false},
		{"disable_scope", PolicyDisableScope, false},
		{"panic", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFailurePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFailurePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFailurePolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
