package redact

import "strings"

func Email(s string) string {
	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return "***"
	}

	local, domain := parts[0], parts[1]
	if len([]rune(local)) > 2 {
		local = string([]rune(local)[:2]) + "***"
	} else {
		local = "***"
	}

	return local + "@" + domain
}

// Subject оставляет провайдера и первые символы идентификатора: "kakao:12***".
func Subject(s string) string {
	provider, id, ok := strings.Cut(s, ":")
	if !ok {
		provider, id = "", s
	}

	r := []rune(id)
	if len(r) > 2 {
		id = string(r[:2]) + "***"
	} else {
		id = "***"
	}

	if provider == "" {
		return id
	}

	return provider + ":" + id
}

// Fingerprint укорачивает отпечаток токена до префикса, достаточного для корреляции логов.
func Fingerprint(fp string) string {
	if len(fp) <= 12 {
		return fp
	}

	return fp[:12]
}

func Token() string { return "[REDACTED_TOKEN]" }
