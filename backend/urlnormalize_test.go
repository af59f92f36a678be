package backend

import "testing"

func TestNormalizeServerURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"   ", ""},
		{"media.example.com", "http://media.example.com"},
		{" media.example.com:8096 ", "http://media.example.com:8096"},
		{"https://media.example.com", "https://media.example.com"},
		{"https://media.example.com/", "https://media.example.com"},
		{"http://media.example.com///", "http://media.example.com"},
	}
	for _, c := range cases {
		if got := NormalizeServerURL(c.in); got != c.want {
			t.Errorf("NormalizeServerURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeJellyfinURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"https://media.example.com", "https://media.example.com"},
		{"https://media.example.com/web", "https://media.example.com"},
		{"https://media.example.com/web/", "https://media.example.com"},
		{"https://media.example.com/web/index.html", "https://media.example.com"},
		{"https://media.example.com/web/index.html#/home.html", "https://media.example.com"},
		{"media.example.com/web/#/login.html", "http://media.example.com"},
		{"https://media.example.com/jellyfin/web", "https://media.example.com/jellyfin"},
	}
	for _, c := range cases {
		if got := NormalizeJellyfinURL(c.in); got != c.want {
			t.Errorf("NormalizeJellyfinURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
