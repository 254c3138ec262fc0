package intent

import (
	"strings"
	"time"
)

// Parser converts free text into an Intent. The clock is injectable so
// relative date phrases ("demain", "tomorrow") parse deterministically in
// tests. Given a fixed Now, Parse is pure.
type Parser struct {
	Now func() time.Time
}

func NewParser() *Parser {
	return &Parser{Now: time.Now}
}

func (p *Parser) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Parse always succeeds. Input nothing matches degrades to {read, task} so
// the guard layer downstream still has an intent to accept or reject.
func (p *Parser) Parse(text string) Intent {
	raw := text
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "/") {
		return p.parseSlash(raw, text)
	}
	return p.parseNatural(raw, text)
}

func (p *Parser) parseSlash(raw, text string) Intent {
	fields := strings.Fields(text)
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "/"))

	op := OpRead
	switch {
	case strings.Contains(cmd, "create") || strings.Contains(cmd, "add"):
		op = OpCreate
	case strings.Contains(cmd, "update") || strings.Contains(cmd, "edit"):
		op = OpUpdate
	case strings.Contains(cmd, "delete") || strings.Contains(cmd, "remove"):
		op = OpDelete
	case strings.Contains(cmd, "list"):
		op = OpList
	}

	res := ResTask
	resFound := false
	resIdx := -1
	for i, tok := range fields {
		lowered := strings.ToLower(tok)
		if r, ok := matchResourceToken(lowered); ok {
			res, resFound, resIdx = r, true, i
			break
		}
	}
	if !resFound {
		if r, ok := matchResourceToken(cmd); ok {
			res = r
		}
	}

	params := p.extractParams(raw, normalize(raw))

	// Leftover token after the command and resource words is the target id
	// (`/delete order 123`), unless extraction already found one. Create
	// and list never target a row, so their trailing tokens are not ids.
	if _, ok := params["id"]; !ok && (op == OpRead || op == OpUpdate || op == OpDelete) {
		for i := 1; i < len(fields); i++ {
			if i == resIdx {
				continue
			}
			tok := strings.Trim(fields[i], ".,;")
			if tok != "" {
				params["id"] = tok
				break
			}
		}
	}

	return Intent{
		Operation:       op,
		Resource:        res,
		Params:          params,
		ConfirmRequired: op == OpDelete,
		RawInput:        raw,
	}
}

func (p *Parser) parseNatural(raw, text string) Intent {
	norm := normalize(raw)

	opsFR, resFR := opTableFR, resTableFR
	opsEN, resEN := opTableEN, resTableEN
	lang := detectLanguage(norm)
	ops, resources := opsEN, resEN
	if lang == "fr" {
		ops, resources = opsFR, resFR
	}

	op := OpRead
	opPos := -1
	opWord := ""
	for _, row := range ops {
		for _, w := range row.Words {
			idx := keywordIndex(norm, w)
			if idx < 0 {
				continue
			}
			if opPos == -1 || idx < opPos {
				op, opPos, opWord = row.Op, idx, w
			}
			break
		}
	}

	res := ResTask
	resPos := -1
	resWord := ""
	for _, row := range resources {
		for _, w := range row.Words {
			idx := keywordIndex(norm, w)
			if idx < 0 {
				continue
			}
			if resPos == -1 || idx < resPos {
				res, resPos, resWord = row.Res, idx, w
			}
			break
		}
	}

	params := p.extractParams(raw, norm)

	if _, ok := params["title"]; !ok && (opPos >= 0 || resPos >= 0) {
		if title := inferTitle(raw, opWord, resWord); title != "" {
			params["title"] = title
		}
	}

	confirm := false
	if op == OpDelete {
		for _, q := range bulkQuantifiers {
			if keywordIndex(norm, q) >= 0 {
				confirm = true
				break
			}
		}
	}

	return Intent{
		Operation:       op,
		Resource:        res,
		Params:          params,
		ConfirmRequired: confirm,
		RawInput:        raw,
	}
}

// extractParams runs over the full input in both branches: dates, money,
// email, uuid, status, priority and a quoted title are all independent of
// how the operation was recognized.
func (p *Parser) extractParams(raw, norm string) map[string]any {
	params := map[string]any{}
	if title, ok := quotedTitle(raw); ok {
		params["title"] = title
	}
	if due, ok := extractDate(norm, p.now()); ok {
		params["due_date"] = due
	}
	// Money runs over the raw text: normalize strips commas, which would
	// split "99,99" into two numbers.
	if amount, currency, ok := extractMoney(strings.ToLower(raw)); ok {
		params["amount"] = amount
		params["currency"] = currency
	}
	if email, ok := extractEmail(raw); ok {
		params["email"] = email
	}
	if id, ok := extractUUID(raw); ok {
		params["id"] = id
	}
	if status, ok := extractStatus(norm); ok {
		params["status"] = status
	}
	if priority, ok := extractPriority(norm); ok {
		params["priority"] = priority
	}
	return params
}

func matchResourceToken(tok string) (Resource, bool) {
	for _, table := range [][]resKeywords{resTableEN, resTableFR} {
		for _, row := range table {
			for _, w := range row.Words {
				if strings.Contains(tok, w) {
					return row.Res, true
				}
			}
		}
	}
	return "", false
}

// detectLanguage counts French vs English keyword hits; ties favor English.
func detectLanguage(norm string) string {
	fr, en := 0, 0
	for _, row := range opTableFR {
		for _, w := range row.Words {
			if keywordIndex(norm, w) >= 0 {
				fr++
			}
		}
	}
	for _, row := range resTableFR {
		for _, w := range row.Words {
			if keywordIndex(norm, w) >= 0 {
				fr++
			}
		}
	}
	for _, w := range frenchMarkers {
		if keywordIndex(norm, w) >= 0 {
			fr++
		}
	}
	for _, row := range opTableEN {
		for _, w := range row.Words {
			if keywordIndex(norm, w) >= 0 {
				en++
			}
		}
	}
	for _, row := range resTableEN {
		for _, w := range row.Words {
			if keywordIndex(norm, w) >= 0 {
				en++
			}
		}
	}
	for _, w := range englishMarkers {
		if keywordIndex(norm, w) >= 0 {
			en++
		}
	}
	if fr > en {
		return "fr"
	}
	return "en"
}

// normalize lowercases the input and replaces punctuation with spaces so
// keyword matching can rely on space-delimited word boundaries. Offsets into
// the normalized string line up with the original input.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch r {
		case ',', ';', '.', '!', '?', '(', ')', '"', '\'':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// keywordIndex finds a keyword at word boundaries; -1 when absent.
func keywordIndex(norm, word string) int {
	padded := " " + norm + " "
	idx := strings.Index(padded, " "+word+" ")
	if idx < 0 {
		return -1
	}
	return idx
}
