package slug

import (
	"regexp"
	"testing"
)

func TestFileName_RasterExample(t *testing.T) {
	got := FileName("mapbiomas-brazil", "collection-6.0", "irrigated_agriculture", "Acre", "2019")
	want := "mapbiomas-brazil-collection-60-irrigated-agriculture-acre-2019"
	if got != want {
		t.Fatalf("FileName=%q want %q", got, want)
	}
}

func TestFileName_AreaSuffix(t *testing.T) {
	got := FileName("mapbiomas-brazil", "collection-6.0", "irrigated_agriculture", "São Paulo", "area")
	want := "mapbiomas-brazil-collection-60-irrigated-agriculture-saopaulo-area"
	if got != want {
		t.Fatalf("FileName=%q want %q", got, want)
	}
}

func TestMake_StripsDiacriticsAndIllegalChars(t *testing.T) {
	cases := map[string]string{
		"Amapá":                        "amapa",
		"Ceará":                        "ceara",
		"Espírito Santo":               "espiritosanto",
		"Rondônia":                     "rondonia",
		"Nª Senhora":                   "nasenhora",
		"Pão & Açúcar @ (Rio)/'x'\"y\"": "paoacucarrioxy",
		"ñandú":                        "nandu",
	}
	for in, want := range cases {
		if got := Make(in); got != want {
			t.Fatalf("Make(%q)=%q want %q", in, got, want)
		}
	}
}

func TestJoin_EmptyPartsCollapse(t *testing.T) {
	got := Join("mapbiomas-brazil", "", "irrigated_agriculture", "", "2020")
	want := "mapbiomas-brazil-irrigated-agriculture-2020"
	if got != want {
		t.Fatalf("Join=%q want %q", got, want)
	}
	if got := Join("", "a", ""); got != "a" {
		t.Fatalf("leading/trailing hyphens must be trimmed, got %q", got)
	}
}

func TestMake_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"---",
		"__a__b__",
		"mapbiomas-brazil-collection-6.0-irrigated_agriculture-Acre-2019",
		"  Mato Grosso do Sul  ",
		"Göteborg - 雪 - 2020",
		"a--b---c",
		"-x-",
		"Distrito Federal (DF) & @home",
	}
	allowed := regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	for _, in := range inputs {
		once := Make(in)
		twice := Make(once)
		if once != twice {
			t.Fatalf("not idempotent for %q: %q then %q", in, once, twice)
		}
		if once != "" && !allowed.MatchString(once) {
			t.Fatalf("slug %q of %q has disallowed shape", once, in)
		}
	}
}
