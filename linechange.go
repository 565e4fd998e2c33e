package gitsage

// ClassifyLines coalesces the hunks of out into gutter ranges. A deletion run
// immediately followed by an addition run is one Modified range rather than a
// Deleted and an Added range. Binary files contribute nothing.
func ClassifyLines(out *DiffOutput) []LineChange {
	if out == nil {
		return nil
	}
	var changes []LineChange
	for _, f := range out.Files {
		if f.IsBinary {
			continue
		}
		for _, h := range f.Hunks {
			changes = append(changes, ClassifyHunk(h)...)
		}
	}
	return changes
}

// ClassifyHunk classifies the lines of a single hunk in one left-to-right scan.
func ClassifyHunk(h DiffHunk) []LineChange {
	var changes []LineChange
	lines := h.Lines
	for i := 0; i < len(lines); {
		switch lines[i].Origin {
		case Addition:
			start := lineOr(lines[i].NewLineno, 1)
			end := start
			next := i + 1
			for next < len(lines) && lines[next].Origin == Addition {
				end = lineOr(lines[next].NewLineno, end)
				next++
			}
			changes = append(changes, LineChange{StartLine: start, EndLine: end, ChangeType: Added})
			i = next

		case Deletion:
			start := lineOr(lines[i].OldLineno, 1)
			end := start
			next := i + 1
			for next < len(lines) && lines[next].Origin == Deletion {
				end = lineOr(lines[next].OldLineno, end)
				next++
			}
			if next < len(lines) && lines[next].Origin == Addition {
				for next < len(lines) && lines[next].Origin == Addition {
					end = lineOr(lines[next].NewLineno, end)
					next++
				}
				changes = append(changes, LineChange{StartLine: start, EndLine: end, ChangeType: Modified})
			} else {
				changes = append(changes, LineChange{StartLine: start, EndLine: end, ChangeType: Deleted})
			}
			i = next

		default:
			i++
		}
	}
	return changes
}

// lineOr returns n, or fallback when the engine supplied no line number.
func lineOr(n, fallback int) int {
	if n == 0 {
		return fallback
	}
	return n
}
