package email_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/voicenav/internal/email"
)

func TestReconstruct(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "simple spoken", in: "john at gmail dot com", want: "john@gmail.com"},
		{name: "capitalized", in: "John At Gmail Dot Com", want: "john@gmail.com"},
		{name: "at the rate", in: "priya at the rate yahoo dot in", want: "priya@yahoo.in"},
		{name: "split provider", in: "sam at g mail dot com", want: "sam@gmail.com"},
		{name: "split outlook", in: "ana at out look dot com", want: "ana@outlook.com"},
		{name: "dotted local part", in: "john dot doe at gmail dot com", want: "john.doe@gmail.com"},
		{name: "underscore", in: "jane underscore doe at proton mail dot com", want: "jane_doe@protonmail.com"},
		{name: "under score", in: "jane under score doe at icloud dot com", want: "jane_doe@icloud.com"},
		{name: "dash and hyphen", in: "a dash b at my hyphen site dot org", want: "a-b@my-site.org"},
		{name: "plus", in: "bob plus news at example dot com", want: "bob+news@example.com"},
		{name: "period word", in: "kim at example period io", want: "kim@example.io"},
		{name: "two level tld", in: "raj at company dot co dot uk", want: "raj@company.co.uk"},
		{name: "com dot in", in: "raj at shop dot com dot in", want: "raj@shop.com.in"},
		{name: "spaced local", in: "mary jane at example dot com", want: "maryjane@example.com"},
		{name: "quoted", in: `"lee at example dot com"`, want: "lee@example.com"},
		{name: "trailing cjk punctuation", in: "lee at example dot com。", want: "lee@example.com"},
		{name: "trailing period", in: "lee at example dot com.", want: "lee@example.com"},
		{name: "duplicate dots", in: "lee at example dot dot com", want: "lee@example.com"},
		{name: "literal kept", in: "John.Doe@Example.com", want: "John.Doe@Example.com"},
		{name: "literal inside text", in: "it is ops@acme.io thanks", want: "ops@acme.io"},
		{name: "no at", in: "hello world", want: "hello world"},
		{name: "missing tld", in: "John at gmail", want: "John at gmail"},
		{name: "two ats", in: "look at john at gmail dot com", want: "look at john at gmail dot com"},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := email.Reconstruct(tt.in); got != tt.want {
				t.Errorf("Reconstruct(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestReconstruct_SpokenShapeAlwaysValid(t *testing.T) {
	t.Parallel()
	locals := []string{"john", "maria", "x", "mary ann", "bob smith"}
	domains := []string{"gmail", "example", "my company", "acme corp", "g mail"}
	tlds := []string{"com", "org", "io", "net", "dev"}

	for _, l := range locals {
		for _, d := range domains {
			for _, tld := range tlds {
				in := l + " at " + d + " dot " + tld
				got := email.Reconstruct(in)
				if !email.Valid(got) {
					t.Errorf("Reconstruct(%q) = %q, not a valid address", in, got)
				}
				if strings.ContainsAny(got, " \t") {
					t.Errorf("Reconstruct(%q) = %q contains whitespace", in, got)
				}
			}
		}
	}
}

func TestReconstruct_Idempotent(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"john at gmail dot com",
		"Alice@Example.org",
		"not an email at all",
		"raj at company dot co dot uk",
		"  spaced   out  ",
		"",
	}
	for _, in := range inputs {
		once := email.Reconstruct(in)
		if twice := email.Reconstruct(once); twice != once {
			t.Errorf("Reconstruct not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestReconstruct_FailureIsVerbatim(t *testing.T) {
	t.Parallel()
	in := "  My Name Is Bob  "
	if got := email.Reconstruct(in); got != in {
		t.Errorf("Reconstruct(%q) = %q, want input unchanged", in, got)
	}
}

func TestDetection(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in                             string
		literal, spoken, ish, complete bool
	}{
		{in: "john@gmail.com", literal: true, spoken: true, ish: true, complete: true},
		{in: "john at gmail dot com", spoken: true, ish: true, complete: true},
		{in: "john at", spoken: true, ish: true},
		{in: "gmail dot com", spoken: true, ish: true, complete: true},
		{in: "my email is", ish: true},
		{in: "harsha at example dot xyz", spoken: true, ish: true},
		{in: "scroll down", literal: false},
	}
	for _, tt := range tests {
		if got := email.LooksLikeEmail(tt.in); got != tt.literal {
			t.Errorf("LooksLikeEmail(%q) = %v, want %v", tt.in, got, tt.literal)
		}
		if got := email.HasSpokenMarkers(tt.in); got != tt.spoken {
			t.Errorf("HasSpokenMarkers(%q) = %v, want %v", tt.in, got, tt.spoken)
		}
		if got := email.IsEmailish(tt.in); got != tt.ish {
			t.Errorf("IsEmailish(%q) = %v, want %v", tt.in, got, tt.ish)
		}
		if got := email.SeemsComplete(tt.in); got != tt.complete {
			t.Errorf("SeemsComplete(%q) = %v, want %v", tt.in, got, tt.complete)
		}
	}
}

func TestStripLeadIns(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"my email address is john at gmail dot com", "john at gmail dot com"},
		{"my email is john at gmail dot com", "john at gmail dot com"},
		{"email: ops@acme.io", "ops@acme.io"},
		{"type my email as jane at outlook dot com", "jane at outlook dot com"},
		{"enter the email field: bob@x.io", "bob@x.io"},
		{"it is bob at yahoo dot com", "bob at yahoo dot com"},
		{"as follows: kim at example dot io", "kim at example dot io"},
		{"isabel at gmail dot com", "isabel at gmail dot com"},
		{"mailbox at gmail dot com", "mailbox at gmail dot com"},
		{`"lee@x.io" in the email field`, "lee@x.io"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := email.StripLeadIns(tt.in); got != tt.want {
			t.Errorf("StripLeadIns(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
