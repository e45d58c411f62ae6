package htmlinline

// candidate is the URL of one srcset entry, as a span of the raw value.
type candidate struct {
	start, end int
}

// parseSrcset locates candidate URLs following the HTML image candidate
// rules: a URL is a run of non-blank characters, trailing commas end the
// candidate, and descriptors run up to the next comma outside parentheses.
func parseSrcset(s string) []candidate {
	var out []candidate
	i := 0
	for i < len(s) {
		for i < len(s) && (isTagSpace(s[i]) || s[i] == ',') {
			i++
		}
		if i >= len(s) {
			break
		}

		start := i
		for i < len(s) && !isTagSpace(s[i]) {
			i++
		}
		end := i
		if s[end-1] == ',' {
			for end > start && s[end-1] == ',' {
				end--
			}
			if end > start {
				out = append(out, candidate{start: start, end: end})
			}
			continue
		}
		out = append(out, candidate{start: start, end: end})

		depth := 0
	descriptors:
		for ; i < len(s); i++ {
			switch s[i] {
			case '(':
				depth++
			case ')':
				if depth > 0 {
					depth--
				}
			case ',':
				if depth == 0 {
					i++
					break descriptors
				}
			}
		}
	}
	return out
}
