package zodiac

import "strings"

type Language string

const (
	LanguageNepali  Language = "ne"
	LanguageEnglish Language = "en"
)

// ParseLanguage maps anything other than "ne" to English.
func ParseLanguage(s string) Language {
	if strings.EqualFold(strings.TrimSpace(s), string(LanguageNepali)) {
		return LanguageNepali
	}
	return LanguageEnglish
}

func signLabelEN(id SignID) string {
	switch id {
	case Aries:
		return "Aries"
	case Taurus:
		return "Taurus"
	case Gemini:
		return "Gemini"
	case Cancer:
		return "Cancer"
	case Leo:
		return "Leo"
	case Virgo:
		return "Virgo"
	case Libra:
		return "Libra"
	case Scorpio:
		return "Scorpio"
	case Sagittarius:
		return "Sagittarius"
	case Capricorn:
		return "Capricorn"
	case Aquarius:
		return "Aquarius"
	case Pisces:
		return "Pisces"
	}
	return unknownLabelEN
}

func signLabelNE(id SignID) string {
	switch id {
	case Aries:
		return "मेष"
	case Taurus:
		return "वृष"
	case Gemini:
		return "मिथुन"
	case Cancer:
		return "कर्कट"
	case Leo:
		return "सिंह"
	case Virgo:
		return "कन्या"
	case Libra:
		return "तुला"
	case Scorpio:
		return "वृश्चिक"
	case Sagittarius:
		return "धनु"
	case Capricorn:
		return "मकर"
	case Aquarius:
		return "कुम्भ"
	case Pisces:
		return "मीन"
	}
	return unknownLabelNE
}

func planetLabelNE(p Planet) string {
	switch p {
	case Sun:
		return "सूर्य"
	case Moon:
		return "चन्द्र"
	case Mars:
		return "मङ्गल"
	case Mercury:
		return "बुध"
	case Jupiter:
		return "बृहस्पति"
	case Venus:
		return "शुक्र"
	case Saturn:
		return "शनि"
	case Rahu:
		return "राहु"
	case Ketu:
		return "केतु"
	}
	return unknownLabelNE
}

const (
	unknownLabelEN = "Unknown"
	unknownLabelNE = "अज्ञात"
)

func SignLabel(id SignID, lang Language) string {
	if !id.Valid() {
		return unknownLabel(lang)
	}
	if lang == LanguageNepali {
		return signLabelNE(id)
	}
	return signLabelEN(id)
}

func PlanetLabel(name string, lang Language) string {
	p, ok := ParsePlanet(name)
	if !ok {
		if strings.TrimSpace(name) == "" {
			return unknownLabel(lang)
		}
		return name
	}
	if lang == LanguageNepali {
		return planetLabelNE(p)
	}
	return string(p)
}

func unknownLabel(lang Language) string {
	if lang == LanguageNepali {
		return unknownLabelNE
	}
	return unknownLabelEN
}
