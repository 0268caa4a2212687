package engine

import "strings"

var tesseractLanguages = map[string]string{
	"en":         "eng",
	"ch":         "chi_sim",
	"chinese":    "chi_sim",
	"jp":         "jpn",
	"japanese":   "jpn",
	"ko":         "kor",
	"korean":     "kor",
	"fr":         "fra",
	"french":     "fra",
	"de":         "deu",
	"german":     "deu",
	"it":         "ita",
	"italian":    "ita",
	"es":         "spa",
	"spanish":    "spa",
	"pt":         "por",
	"portuguese": "por",
	"ru":         "rus",
	"russian":    "rus",
	"ar":         "ara",
	"arabic":     "ara",
	"hi":         "hin",
	"hindi":      "hin",
}

var readerLanguages = map[string]string{
	"en":         "en",
	"ch":         "ch_sim",
	"chinese":    "ch_sim",
	"jp":         "ja",
	"japanese":   "ja",
	"ko":         "ko",
	"korean":     "ko",
	"fr":         "fr",
	"french":     "fr",
	"de":         "de",
	"german":     "de",
	"it":         "it",
	"italian":    "it",
	"es":         "es",
	"spanish":    "es",
	"pt":         "pt",
	"portuguese": "pt",
	"ru":         "ru",
	"russian":    "ru",
	"ar":         "ar",
	"arabic":     "ar",
	"hi":         "hi",
	"hindi":      "hi",
}

// TesseractLanguages maps short codes to tesseract traineddata names.
// Unknown codes pass through lowercased; an empty input yields "eng".
func TesseractLanguages(langs []string) []string {
	out := mapLanguages(langs, tesseractLanguages)
	if len(out) == 0 {
		return []string{"eng"}
	}
	return out
}

// ReaderLanguages maps short codes to the codes reader-style engines expect.
func ReaderLanguages(langs []string) []string {
	return mapLanguages(langs, readerLanguages)
}

func mapLanguages(langs []string, table map[string]string) []string {
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		key := strings.ToLower(strings.TrimSpace(l))
		if key == "" {
			continue
		}
		if mapped, ok := table[key]; ok {
			out = append(out, mapped)
		} else {
			out = append(out, key)
		}
	}
	return out
}
