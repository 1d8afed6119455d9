package transcribe

import (
	"fmt"
	"strings"
)

// languages lists the ISO 639-1 codes accepted by the transcription API.
var languages = func() map[string]bool {
	m := make(map[string]bool)
	for _, code := range strings.Fields(`
		af ar bg bn ca cs da de el en es et fa fi fr gu he hi hr hu id it ja kn
		ko lt lv mk ml mr ms nl no pa pl pt ro ru sk sl sr sv sw ta te th tl tr
		uk ur vi zh`) {
		m[code] = true
	}
	return m
}()

// ParseLanguage returns the base ISO 639-1 code for a language or locale.
// "pt-BR", "pt_br" and "PT" all yield "pt". Empty means auto-detect.
func ParseLanguage(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	base := strings.ToLower(strings.ReplaceAll(s, "_", "-"))
	if i := strings.IndexByte(base, '-'); i != -1 {
		base = base[:i]
	}
	if !languages[base] {
		return "", fmt.Errorf("%q (use ISO 639-1 codes like en, fr, pt-BR): %w", s, ErrInvalidLanguage)
	}
	return base, nil
}
