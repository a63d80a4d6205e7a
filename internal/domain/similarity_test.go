package domain

import "testing"

func TestNormalizeSimilarThreshold(t *testing.T) {
	matches := []ProviderMatch{
		{ImageURL: "http://img/a.png", CADURL: "http://cad/a.dwg", Name: "a", Similarity: 0.95},
		{ImageURL: "http://img/b.png", CADURL: "http://cad/b.dwg", Name: "b", Similarity: 0.72},
		{ImageURL: "http://img/c.png", CADURL: "None", Name: "c", Similarity: 0.5},
	}

	got := NormalizeSimilar(matches, DefaultRetiredCADHosts)

	if len(got) != 2 {
		t.Fatalf("result count = %d, want 2", len(got))
	}
	// Provider ordering is trusted, no re-sort.
	if got[0].Name != "a" || got[1].Name != "b" {
		t.Errorf("order = %q, %q; want a, b", got[0].Name, got[1].Name)
	}
	if got[0].Rank != 1 || got[1].Rank != 2 {
		t.Errorf("ranks = %d, %d; want 1, 2", got[0].Rank, got[1].Rank)
	}
	for i, r := range got {
		if r.CADURL == nil {
			t.Errorf("result %d: cad url = nil, want non-nil", i)
		}
	}
}

func TestNormalizeSimilarBoundary(t *testing.T) {
	tests := []struct {
		similarity float64
		included   bool
	}{
		{0.70, true},
		{0.699, false},
		{1.0, true},
		{0.0, false},
	}

	for _, tt := range tests {
		got := NormalizeSimilar([]ProviderMatch{
			{ImageURL: "http://img/x.png", Similarity: tt.similarity},
		}, nil)
		if included := len(got) == 1; included != tt.included {
			t.Errorf("similarity %v: included = %v, want %v", tt.similarity, included, tt.included)
		}
	}
}

func TestNormalizeSimilarCADSentinels(t *testing.T) {
	retired := []string{"http://65.0.73.121:8000"}

	tests := []struct {
		name    string
		cadURL  string
		wantNil bool
	}{
		{"literal None", "None", true},
		{"empty", "", true},
		{"retired host", "http://65.0.73.121:8000/cad/a.dwg", true},
		{"None path segment", "http://cad.example.com/files/None", true},
		{"real url", "http://cad.example.com/files/a.dwg", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeSimilar([]ProviderMatch{
				{ImageURL: "http://img/x.png", CADURL: tt.cadURL, Similarity: 0.9},
			}, retired)
			if len(got) != 1 {
				t.Fatalf("result count = %d, want 1", len(got))
			}
			if gotNil := got[0].CADURL == nil; gotNil != tt.wantNil {
				t.Errorf("cad url nil = %v, want %v", gotNil, tt.wantNil)
			}
			if !tt.wantNil && *got[0].CADURL != tt.cadURL {
				t.Errorf("cad url = %q, want %q", *got[0].CADURL, tt.cadURL)
			}
		})
	}
}

func TestIsSentinelRef(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"", true},
		{"  ", true},
		{"None", true},
		{"http://assets.example.com/media/None", true},
		{"/media/orders/None", true},
		{"/media/orders/ref1.jpg", false},
		{"http://assets.example.com/ref1.jpg", false},
	}

	for _, tt := range tests {
		if got := IsSentinelRef(tt.ref); got != tt.want {
			t.Errorf("IsSentinelRef(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"http://img.example.com/part.png", "PNG"},
		{"http://img.example.com/part.dwg?sig=abc", "DWG"},
		{"/media/part.STEP", "STEP"},
		{"http://img.example.com/noext", ""},
		{"http://img.example.com/dir.d/noext", ""},
		{"trailingdot.", ""},
	}

	for _, tt := range tests {
		if got := FormatOf(tt.ref); got != tt.want {
			t.Errorf("FormatOf(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}
