package extract

import (
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// tjSpaceThreshold is the TJ displacement, in thousandths of an em, at or
// beyond which a gap between two strings is read as a word space.
const tjSpaceThreshold = -200

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokName
	tokString
	tokArray
	tokArrayEnd
	tokOperator
)

// token is one lexical element of a content stream or CMap.
type token struct {
	kind tokenKind
	num  float64
	text string  // name without the slash, or operator keyword
	data []byte  // decoded bytes of a literal or hex string
	arr  []token // array elements
}

// lexer splits PDF content into tokens. Dictionaries and procedures carry no
// text and are skipped.
type lexer struct {
	data []byte
	pos  int
}

func isPDFSpace(c byte) bool {
	switch c {
	case ' ', '\n', '\r', '\t', '\f', 0:
		return true
	}
	return false
}

func isPDFDelimiter(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

// next returns the next token, or false at the end of the data.
func (l *lexer) next() (token, bool) {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case isPDFSpace(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		case c == '(':
			return token{kind: tokString, data: l.literal()}, true
		case c == '<':
			if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
				l.pos += 2
				continue
			}
			return token{kind: tokString, data: l.hex()}, true
		case c == '[':
			l.pos++
			return token{kind: tokArray, arr: l.array()}, true
		case c == ']':
			l.pos++
			return token{kind: tokArrayEnd}, true
		case c == '/':
			l.pos++
			return token{kind: tokName, text: l.regular()}, true
		case isPDFDelimiter(c):
			// '>', ')', '{' and '}' outside of a string
			l.pos++
		default:
			word := l.regular()
			if n, err := strconv.ParseFloat(word, 64); err == nil {
				return token{kind: tokNumber, num: n}, true
			}
			return token{kind: tokOperator, text: word}, true
		}
	}
	return token{}, false
}

// regular reads a run of regular characters.
func (l *lexer) regular() string {
	start := l.pos
	for l.pos < len(l.data) && !isPDFSpace(l.data[l.pos]) && !isPDFDelimiter(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// literal reads a (string) with balanced parentheses and resolves its escapes.
func (l *lexer) literal() []byte {
	l.pos++ // (
	start := l.pos
	depth := 1
	for l.pos < len(l.data) {
		switch l.data[l.pos] {
		case '\\':
			l.pos++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				raw := l.data[start:l.pos]
				l.pos++
				return []byte(decodePDFString(raw))
			}
		}
		l.pos++
	}
	return []byte(decodePDFString(l.data[start:min(l.pos, len(l.data))]))
}

// hex reads a <hex string>. A missing final digit counts as 0.
func (l *lexer) hex() []byte {
	l.pos++ // <
	var digits []byte
	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		if c := l.data[l.pos]; !isPDFSpace(c) {
			digits = append(digits, c)
		}
		l.pos++
	}
	l.pos++ // >
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, hex.DecodedLen(len(digits)))
	n, _ := hex.Decode(out, digits)
	return out[:n]
}

func (l *lexer) array() []token {
	var elems []token
	for {
		tok, ok := l.next()
		if !ok || tok.kind == tokArrayEnd {
			return elems
		}
		elems = append(elems, tok)
	}
}

// skipInlineImage moves past the binary data of an inline image, which
// follows the ID operator and ends at an EI surrounded by whitespace.
func (l *lexer) skipInlineImage() {
	for i := l.pos + 1; i+1 < len(l.data); i++ {
		if l.data[i] == 'E' && l.data[i+1] == 'I' && isPDFSpace(l.data[i-1]) &&
			(i+2 == len(l.data) || isPDFSpace(l.data[i+2])) {
			l.pos = i + 2
			return
		}
	}
	l.pos = len(l.data)
}

// pdfFont turns the bytes of a shown string into text.
type pdfFont struct {
	toUnicode *cmap
	composite bool // Type0 font: multi-byte codes
}

func (f *pdfFont) decode(b []byte) string {
	if f != nil && f.toUnicode != nil {
		if s, ok := f.toUnicode.decode(b); ok {
			return s
		}
	}
	if f != nil && f.composite {
		// CIDs without a ToUnicode map do not name characters.
		return ""
	}
	s, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// textFromContentStream interprets the text operators of a page content
// stream. fonts maps font resource names to decoders; nil is allowed.
func textFromContentStream(data []byte, fonts map[string]*pdfFont) string {
	var (
		sb       strings.Builder
		font     *pdfFont
		operands []token
		lastY    float64
		haveY    bool
	)

	show := func(tok token) {
		if tok.kind == tokString {
			sb.WriteString(font.decode(tok.data))
		}
	}
	operand := func(fromEnd int) token {
		if len(operands) < fromEnd {
			return token{}
		}
		return operands[len(operands)-fromEnd]
	}

	lex := &lexer{data: data}
	for {
		tok, ok := lex.next()
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "Tf":
			if name := operand(2); name.kind == tokName {
				font = fonts[name.text]
			}
		case "Tj":
			show(operand(1))
		case "'", `"`:
			sb.WriteByte('\n')
			show(operand(1))
		case "TJ":
			for _, el := range operand(1).arr {
				if el.kind == tokNumber && el.num <= tjSpaceThreshold {
					sb.WriteByte(' ')
					continue
				}
				show(el)
			}
		case "Td", "TD":
			if ty := operand(1); ty.kind == tokNumber && ty.num != 0 {
				sb.WriteByte('\n')
			} else {
				sb.WriteByte(' ')
			}
		case "Tm":
			y := operand(1)
			if haveY && y.num == lastY {
				sb.WriteByte(' ')
			} else {
				sb.WriteByte('\n')
			}
			lastY, haveY = y.num, true
		case "T*", "ET":
			sb.WriteByte('\n')
		case "ID":
			lex.skipInlineImage()
		}
		operands = operands[:0]
	}

	return tidyLines(sb.String())
}

// tidyLines collapses spaces within lines and drops blank lines.
func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// decodePDFString resolves the escape sequences of a PDF literal string.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch c := raw[i]; c {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'b', 'f':
			// backspace and form feed carry no text
		case '\n':
			// line continuation
		case '\r':
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
		case '\\', '(', ')':
			sb.WriteByte(c)
		default:
			if c < '0' || c > '7' {
				sb.WriteByte(c)
				continue
			}
			val := int(c - '0')
			for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		}
	}
	return sb.String()
}

// cmap is a parsed ToUnicode CMap.
type cmap struct {
	codeLen int
	chars   map[uint32]string
}

// maxRangeSize bounds the expansion of one bfrange entry.
const maxRangeSize = 1 << 16

// parseCMap reads the codespace, bfchar and bfrange sections of a ToUnicode
// CMap. It returns nil when nothing maps.
func parseCMap(data []byte) *cmap {
	cm := &cmap{chars: make(map[uint32]string)}
	var operands []token

	lex := &lexer{data: data}
	for {
		tok, ok := lex.next()
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "endcodespacerange":
			if cm.codeLen == 0 && len(operands) > 0 && operands[0].kind == tokString {
				cm.codeLen = len(operands[0].data)
			}
		case "endbfchar":
			for i := 0; i+1 < len(operands); i += 2 {
				src, dst := operands[i], operands[i+1]
				if src.kind != tokString || dst.kind != tokString {
					continue
				}
				cm.noteCodeLen(src.data)
				cm.chars[codeOf(src.data)] = utf16BE(dst.data)
			}
		case "endbfrange":
			for i := 0; i+2 < len(operands); i += 3 {
				cm.addRange(operands[i], operands[i+1], operands[i+2])
			}
		}
		operands = operands[:0]
	}

	if len(cm.chars) == 0 {
		return nil
	}
	if cm.codeLen == 0 {
		cm.codeLen = 1
	}
	return cm
}

func (cm *cmap) noteCodeLen(src []byte) {
	if cm.codeLen == 0 {
		cm.codeLen = len(src)
	}
}

func (cm *cmap) addRange(lo, hi, dst token) {
	if lo.kind != tokString || hi.kind != tokString {
		return
	}
	cm.noteCodeLen(lo.data)
	first, last := codeOf(lo.data), codeOf(hi.data)
	if last < first || last-first >= maxRangeSize {
		return
	}

	switch dst.kind {
	case tokString:
		units := utf16Units(dst.data)
		if len(units) == 0 {
			return
		}
		for code := first; code <= last; code++ {
			shifted := append([]uint16(nil), units...)
			shifted[len(shifted)-1] += uint16(code - first)
			cm.chars[code] = string(utf16.Decode(shifted))
		}
	case tokArray:
		for i, el := range dst.arr {
			code := first + uint32(i)
			if code > last {
				break
			}
			if el.kind == tokString {
				cm.chars[code] = utf16BE(el.data)
			}
		}
	}
}

// decode maps b code by code. ok is false when no code maps.
func (cm *cmap) decode(b []byte) (string, bool) {
	var sb strings.Builder
	mapped := false
	for i := 0; i+cm.codeLen <= len(b); i += cm.codeLen {
		if s, found := cm.chars[codeOf(b[i:i+cm.codeLen])]; found {
			sb.WriteString(s)
			mapped = true
		}
	}
	return sb.String(), mapped
}

func codeOf(b []byte) uint32 {
	var code uint32
	for _, c := range b {
		code = code<<8 | uint32(c)
	}
	return code
}

func utf16Units(b []byte) []uint16 {
	units := make([]uint16, 0, (len(b)+1)/2)
	for i := 0; i < len(b); i += 2 {
		if i+1 < len(b) {
			units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
		} else {
			units = append(units, uint16(b[i]))
		}
	}
	return units
}

func utf16BE(b []byte) string {
	return string(utf16.Decode(utf16Units(b)))
}

// pageFonts returns text decoders for the fonts in a page's resources.
func pageFonts(pdfCtx *model.Context, pageNr int) (fonts map[string]*pdfFont) {
	defer func() {
		if r := recover(); r != nil {
			fonts = nil
		}
	}()

	pageDict, _, inherited, err := pdfCtx.PageDict(pageNr, false)
	if err != nil || pageDict == nil {
		return nil
	}

	var resources types.Dict
	if obj, found := pageDict.Find("Resources"); found {
		resources, _ = pdfCtx.DereferenceDict(obj)
	}
	if resources == nil && inherited != nil {
		resources = inherited.Resources
	}
	if resources == nil {
		return nil
	}

	fontObj, found := resources.Find("Font")
	if !found {
		return nil
	}
	fontDict, err := pdfCtx.DereferenceDict(fontObj)
	if err != nil || fontDict == nil {
		return nil
	}

	fonts = make(map[string]*pdfFont, len(fontDict))
	for name, obj := range fontDict {
		fd, err := pdfCtx.DereferenceDict(obj)
		if err != nil || fd == nil {
			continue
		}
		font := &pdfFont{}
		if subtype := fd.NameEntry("Subtype"); subtype != nil && *subtype == "Type0" {
			font.composite = true
		}
		if obj, found := fd.Find("ToUnicode"); found {
			if o, err := pdfCtx.Dereference(obj); err == nil {
				if sd, ok := o.(types.StreamDict); ok && sd.Decode() == nil {
					font.toUnicode = parseCMap(sd.Content)
				}
			}
		}
		fonts[name] = font
	}
	return fonts
}
