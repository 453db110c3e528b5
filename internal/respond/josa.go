package respond

// hangulBase and hangulLast bound the precomposed Hangul syllable block.
// A syllable decomposes as lead/vowel/final; (r-hangulBase)%28 is the
// final-consonant index, zero when the syllable has no 받침.
const (
	hangulBase = 0xAC00
	hangulLast = 0xD7A3

	finalRieul = 8
)

// hasFinalConsonant reports whether the last Hangul syllable or digit of
// word ends in a final consonant. Trailing symbols are skipped; words
// without any decidable rune default to no final consonant.
func hasFinalConsonant(word string) bool {
	runes := []rune(word)
	for i := len(runes) - 1; i >= 0; i-- {
		r := runes[i]
		if r >= hangulBase && r <= hangulLast {
			return (r-hangulBase)%28 != 0
		}
		if r >= '0' && r <= '9' {
			// 영 일 이 삼 사 오 육 칠 팔 구
			switch r {
			case '0', '1', '3', '6', '7', '8':
				return true
			default:
				return false
			}
		}
	}
	return false
}

// endsInRieul reports whether word's final consonant is ㄹ, which takes
// 로 instead of 으로.
func endsInRieul(word string) bool {
	runes := []rune(word)
	for i := len(runes) - 1; i >= 0; i-- {
		r := runes[i]
		if r >= hangulBase && r <= hangulLast {
			return (r-hangulBase)%28 == finalRieul
		}
	}
	return false
}

// TopicParticle returns 은 after a final consonant, 는 otherwise.
func TopicParticle(word string) string {
	if hasFinalConsonant(word) {
		return "은"
	}
	return "는"
}

// ObjectParticle returns 을 after a final consonant, 를 otherwise.
func ObjectParticle(word string) string {
	if hasFinalConsonant(word) {
		return "을"
	}
	return "를"
}

// SubjectParticle returns 이 after a final consonant, 가 otherwise.
func SubjectParticle(word string) string {
	if hasFinalConsonant(word) {
		return "이"
	}
	return "가"
}

// InstrumentalParticle returns 으로 after a final consonant other than ㄹ,
// 로 otherwise.
func InstrumentalParticle(word string) string {
	if hasFinalConsonant(word) && !endsInRieul(word) {
		return "으로"
	}
	return "로"
}
