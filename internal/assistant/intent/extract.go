package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	quotedRe    = regexp.MustCompile(`"([^"]+)"|“([^”]+)”|«\s*([^»]+?)\s*»|'([^']+)'`)
	emailRe     = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	uuidRe      = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	dmyRe       = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	clockFRRe   = regexp.MustCompile(`(?:^|\s)à\s*(\d{1,2})(?:\s*h\s*(\d{2})?|:(\d{2}))?`)
	clockENRe   = regexp.MustCompile(`(?:^|\s)at\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)
	moneySufRe  = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(€|euros?|eur|\$|dollars?|usd)(?:\s|$)`)
	moneyPreRe  = regexp.MustCompile(`([€$])\s*(\d+(?:[.,]\d+)?)`)
	numberOnly  = regexp.MustCompile(`^\d+$`)
	digitTokens = regexp.MustCompile(`^\d+[h:]?\d*$`)
)

func quotedTitle(raw string) (string, bool) {
	m := quotedRe.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	for _, g := range m[1:] {
		if g != "" {
			return g, true
		}
	}
	return "", false
}

func extractEmail(raw string) (string, bool) {
	m := emailRe.FindString(raw)
	return m, m != ""
}

func extractUUID(raw string) (string, bool) {
	m := uuidRe.FindString(raw)
	return strings.ToLower(m), m != ""
}

// extractDate resolves the first human date expression in the text.
// "demain"/"tomorrow" keep the current wall clock unless an explicit time is
// given; "à 14h" / "at 2pm" alone mean today at that time.
func extractDate(norm string, now time.Time) (time.Time, bool) {
	hour, minute, hasClock := findClockTime(norm)

	switch {
	case keywordIndex(norm, "demain") >= 0 || keywordIndex(norm, "tomorrow") >= 0:
		d := now.AddDate(0, 0, 1)
		if hasClock {
			return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, d.Location()), true
		}
		return d, true
	// normalize turns the apostrophe into a space, so "aujourd'hui"
	// arrives here as two words.
	case strings.Contains(norm, "aujourd hui") || keywordIndex(norm, "today") >= 0:
		if hasClock {
			return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location()), true
		}
		return now, true
	}

	if m := dmyRe.FindStringSubmatch(norm); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			if !hasClock {
				hour, minute = 0, 0
			}
			return time.Date(year, time.Month(month), day, hour, minute, 0, 0, now.Location()), true
		}
	}

	if hasClock {
		return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location()), true
	}
	return time.Time{}, false
}

func findClockTime(norm string) (int, int, bool) {
	if m := clockENRe.FindStringSubmatch(norm); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		switch m[3] {
		case "pm":
			if hour < 12 {
				hour += 12
			}
		case "am":
			if hour == 12 {
				hour = 0
			}
		}
		if hour <= 23 && minute <= 59 {
			return hour, minute, true
		}
	}
	if m := clockFRRe.FindStringSubmatch(norm); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		} else if m[3] != "" {
			minute, _ = strconv.Atoi(m[3])
		}
		if hour <= 23 && minute <= 59 {
			return hour, minute, true
		}
	}
	return 0, 0, false
}

// extractMoney matches both "1500€" and "$2000" shapes. Comma is accepted as
// the decimal separator; the euro spellings map to EUR, everything else USD.
func extractMoney(norm string) (float64, string, bool) {
	if m := moneySufRe.FindStringSubmatch(norm + " "); m != nil {
		amount, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err == nil {
			return amount, currencyFor(m[2]), true
		}
	}
	if m := moneyPreRe.FindStringSubmatch(norm); m != nil {
		amount, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", "."), 64)
		if err == nil {
			return amount, currencyFor(m[1]), true
		}
	}
	return 0, "", false
}

func currencyFor(token string) string {
	switch token {
	case "€", "eur", "euro", "euros":
		return "EUR"
	default:
		return "USD"
	}
}

func extractStatus(norm string) (string, bool) {
	for _, row := range statusTable {
		for _, w := range row.Words {
			if keywordIndex(norm, w) >= 0 {
				return row.Status, true
			}
		}
	}
	return "", false
}

func extractPriority(norm string) (string, bool) {
	for _, row := range priorityTable {
		for _, w := range row.Words {
			if keywordIndex(norm, w) >= 0 {
				return row.Priority, true
			}
		}
	}
	return "", false
}

// titleStopWords end an inferred title: date phrases, connectives and
// quantifiers carry no title content.
var titleStopWords = map[string]bool{
	"demain": true, "tomorrow": true, "aujourd'hui": true, "today": true,
	"pour": true, "for": true, "à": true, "at": true, "le": true, "the": true,
	"on": true, "en": true, "in": true, "to": true, "comme": true, "as": true,
	"all": true, "tout": true, "tous": true, "toutes": true,
}

// inferTitle picks the words following the matched operation/resource
// keyword, skipping tokens that are ids, emails, amounts or dates.
func inferTitle(raw, opWord, resWord string) string {
	tokens := strings.Fields(raw)
	cleaned := make([]string, len(tokens))
	for i, tok := range tokens {
		cleaned[i] = strings.ToLower(strings.Trim(tok, `.,;:!?"'«»“”`))
	}

	start := -1
	for _, kw := range []string{opWord, resWord} {
		if kw == "" {
			continue
		}
		first := strings.Fields(kw)[0]
		for i, c := range cleaned {
			if c == first {
				if i+1 > start {
					start = i + 1
				}
				break
			}
		}
	}
	if start < 0 || start >= len(tokens) {
		return ""
	}

	var words []string
	for i := start; i < len(tokens); i++ {
		c := cleaned[i]
		if c == "" || titleStopWords[c] {
			if titleStopWords[c] && len(words) > 0 {
				break
			}
			continue
		}
		if numberOnly.MatchString(c) || digitTokens.MatchString(c) {
			continue
		}
		if uuidRe.MatchString(c) || emailRe.MatchString(c) {
			continue
		}
		if _, _, ok := extractMoney(c); ok {
			continue
		}
		if statusWord(c) || priorityWord(c) || articleWord(c) {
			continue
		}
		words = append(words, strings.Trim(tokens[i], `.,;:!?"'«»“”`))
	}
	return strings.Join(words, " ")
}

func statusWord(c string) bool {
	for _, row := range statusTable {
		for _, w := range row.Words {
			if c == w {
				return true
			}
		}
	}
	return false
}

func priorityWord(c string) bool {
	for _, row := range priorityTable {
		for _, w := range row.Words {
			if c == w {
				return true
			}
		}
	}
	return false
}

var articles = map[string]bool{
	"une": true, "un": true, "la": true, "les": true, "des": true,
	"ma": true, "mon": true, "mes": true,
	"a": true, "an": true, "my": true,
}

func articleWord(c string) bool { return articles[c] }
