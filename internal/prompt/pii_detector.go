package prompt

import (
	"regexp"
	"sort"
	"strings"
)

// PIIType represents different types of PII that can be detected
type PIIType string

const (
	PIITypeEmail      PIIType = "email"
	PIITypeSSN        PIIType = "ssn"
	PIITypeCreditCard PIIType = "credit_card"
	PIITypeIPAddress  PIIType = "ip_address"
)

// PIIDetection represents a detected PII instance
type PIIDetection struct {
	Type     PIIType
	Value    string
	StartPos int
	EndPos   int
}

// Phone and bare nine-digit patterns are left out: math questions are
// mostly digits and would be mangled by them.
var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
	ssnPattern   = regexp.MustCompile(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`)
	cardPattern  = regexp.MustCompile(`\b(?:[0-9][ -]?){12,18}[0-9]\b`)
	ipv4Pattern  = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`)
)

// DetectPII returns true if the text likely contains PII.
func DetectPII(text string) bool {
	return len(DetectAllPII(text)) > 0
}

// DetectAllPII returns all PII detections in the text, ordered by position.
// Overlapping matches keep the earliest, longest one.
func DetectAllPII(text string) []PIIDetection {
	var detections []PIIDetection
	add := func(kind PIIType, pattern *regexp.Regexp, accept func(string) bool) {
		for _, m := range pattern.FindAllStringIndex(text, -1) {
			value := text[m[0]:m[1]]
			if accept != nil && !accept(value) {
				continue
			}
			detections = append(detections, PIIDetection{Type: kind, Value: value, StartPos: m[0], EndPos: m[1]})
		}
	}

	add(PIITypeEmail, emailPattern, nil)
	add(PIITypeSSN, ssnPattern, nil)
	add(PIITypeCreditCard, cardPattern, luhnCheck)
	add(PIITypeIPAddress, ipv4Pattern, nil)

	sort.SliceStable(detections, func(i, j int) bool {
		if detections[i].StartPos != detections[j].StartPos {
			return detections[i].StartPos < detections[j].StartPos
		}
		return detections[i].EndPos > detections[j].EndPos
	})

	out := detections[:0]
	end := -1
	for _, d := range detections {
		if d.StartPos < end {
			continue
		}
		out = append(out, d)
		end = d.EndPos
	}
	return out
}

// RedactPII replaces every detected PII value with a typed placeholder.
func RedactPII(text string) string {
	detections := DetectAllPII(text)
	if len(detections) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, d := range detections {
		b.WriteString(text[last:d.StartPos])
		b.WriteString(getRedactionString(d.Type))
		last = d.EndPos
	}
	b.WriteString(text[last:])
	return b.String()
}

func getRedactionString(piiType PIIType) string {
	switch piiType {
	case PIITypeEmail:
		return "[EMAIL_REDACTED]"
	case PIITypeSSN:
		return "[SSN_REDACTED]"
	case PIITypeCreditCard:
		return "[CC_REDACTED]"
	case PIITypeIPAddress:
		return "[IP_REDACTED]"
	default:
		return "[REDACTED]"
	}
}

// luhnCheck validates a credit card number using the Luhn algorithm
func luhnCheck(cardNumber string) bool {
	cardNumber = strings.ReplaceAll(cardNumber, " ", "")
	cardNumber = strings.ReplaceAll(cardNumber, "-", "")

	if len(cardNumber) < 13 || len(cardNumber) > 19 {
		return false
	}

	sum := 0
	isSecond := false
	for i := len(cardNumber) - 1; i >= 0; i-- {
		digit := int(cardNumber[i] - '0')
		if isSecond {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		isSecond = !isSecond
	}

	return sum%10 == 0
}
