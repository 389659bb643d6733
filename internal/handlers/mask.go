package handlers

// maskEmail keeps the first two characters of the local part.
func maskEmail(email string) string {
	if email == "" {
		return ""
	}
	runes := []rune(email)
	at := -1
	for i, r := range runes {
		if r == '@' {
			at = i
			break
		}
	}
	if at <= 0 {
		return "***"
	}
	prefix := string(runes[:at])
	domain := string(runes[at:])
	if len(runes[:at]) <= 2 {
		return prefix + "***" + domain
	}
	return string(runes[:2]) + "***" + domain
}

// maskPhone keeps the last two digits.
func maskPhone(phone string) string {
	if phone == "" {
		return ""
	}
	runes := []rune(phone)
	n := len(runes)
	if n <= 4 {
		return "***"
	}
	masked := make([]rune, n)
	for i := range runes {
		if i >= n-2 {
			masked[i] = runes[i]
		} else {
			masked[i] = '*'
		}
	}
	return string(masked)
}
