package classify

import "testing"

// =============================================================================
// Classify Tests
// =============================================================================

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType URLType
		wantURL  string
		wantOK   bool
	}{
		{"script", "https://a.com/x.js", Script, "https://a.com/x.js", true},
		{"script trailing slash", "https://a.com/x.js/", Script, "https://a.com/x.js", true},
		{"script many slashes", "https://a.com/x.js///", Script, "https://a.com/x.js", true},
		{"source map", "https://a.com/app.js.map", Script, "https://a.com/app.js.map", true},
		{"png", "https://a.com/logo.png", Resource, "https://a.com/logo.png", true},
		{"jpeg", "http://a.com/p.jpeg", Resource, "http://a.com/p.jpeg", true},
		{"css", "https://a.com/s.css", Resource, "https://a.com/s.css", true},
		{"zip", "https://a.com/dl.zip", Resource, "https://a.com/dl.zip", true},
		{"php", "https://a.com/page.php", HTML, "https://a.com/page.php", true},
		{"aspx", "https://a.com/Default.aspx", HTML, "https://a.com/Default.aspx", true},
		{"htm", "https://a.com/index.htm", HTML, "https://a.com/index.htm", true},
		{"no extension", "https://a.com/unknown", Other, "https://a.com/unknown", true},
		{"query string", "https://a.com/api/data?type=json", Other, "https://a.com/api/data?type=json", true},
		{"query hides suffix", "https://a.com/app.js?v=1", Other, "https://a.com/app.js?v=1", true},
		{"upper case suffix", "https://a.com/APP.JS", Other, "https://a.com/APP.JS", true},
		{"site root", "https://a.com/", Other, "https://a.com", true},
		{"ftp", "ftp://a.com/x.js", "", "ftp://a.com/x.js", false},
		{"data uri", "data:image/png;base64,AAAA", "", "data:image/png;base64,AAAA", false},
		{"upper case scheme", "HTTPS://a.com/x.js", "", "HTTPS://a.com/x.js", false},
		{"empty", "", "", "", false},
		{"only slashes", "///", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotURL, gotOK := Classify(tt.input)
			if gotOK != tt.wantOK {
				t.Fatalf("Classify(%q) ok = %v, want %v", tt.input, gotOK, tt.wantOK)
			}
			if gotURL != tt.wantURL {
				t.Errorf("Classify(%q) url = %q, want %q", tt.input, gotURL, tt.wantURL)
			}
			if gotType != tt.wantType {
				t.Errorf("Classify(%q) type = %q, want %q", tt.input, gotType, tt.wantType)
			}
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	inputs := []string{"https://a.com/x.js", "ftp://x", "https://a.com/", "https://a.com/a.gif"}

	for _, in := range inputs {
		t1, u1, ok1 := Classify(in)
		t2, u2, ok2 := Classify(in)
		if t1 != t2 || u1 != u2 || ok1 != ok2 {
			t.Errorf("Classify(%q) not deterministic: (%v,%q,%v) vs (%v,%q,%v)", in, t1, u1, ok1, t2, u2, ok2)
		}
	}
}

// =============================================================================
// URLType Tests
// =============================================================================

func TestURLType_Valid(t *testing.T) {
	for _, typ := range Types() {
		if !typ.Valid() {
			t.Errorf("%q should be valid", typ)
		}
	}
	if URLType("image").Valid() {
		t.Error("image should not be valid")
	}
	if URLType("").Valid() {
		t.Error("empty type should not be valid")
	}
}

func TestParseType(t *testing.T) {
	if got, ok := ParseType(" script "); !ok || got != Script {
		t.Errorf("ParseType(script) = %v, %v", got, ok)
	}
	if _, ok := ParseType("js"); ok {
		t.Error("ParseType(js) should fail")
	}
}

func TestTypes_Order(t *testing.T) {
	want := []URLType{Script, Resource, HTML, Other}
	got := Types()
	if len(got) != len(want) {
		t.Fatalf("Types() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Types()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
