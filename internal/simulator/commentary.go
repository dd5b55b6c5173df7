package simulator

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

const roundSpacing = 90 * time.Second

var quizOpeners = []string{
	"%s makes a flying start",
	"%s is first on the buzzer",
	"%s settles in quickly",
	"%s sets the pace",
}

var duelOpeners = []string{
	"%s steps up to the oche",
	"%s finds the rhythm early",
	"%s looks composed",
}

type commentarySource interface {
	Intn(n int) int
	Between(lo, hi float64) float64
}

func quizCommentary(src commentarySource, o domain.Outcome) []domain.CommentaryLine {
	var lines []domain.CommentaryLine
	for i, r := range o.Rounds {
		base := time.Duration(i) * roundSpacing
		if r.TieBreaker {
			lines = append(lines, domain.CommentaryLine{Offset: base, Text: "Scores level, we go to a tie breaker"})
			continue
		}
		lead := lowestTopIndex(r.Scores)
		lines = append(lines, domain.CommentaryLine{
			Offset: base + jitter(src),
			Text:   fmt.Sprintf(quizOpeners[src.Intn(len(quizOpeners))], o.ParticipantName(lead)),
		})
		if r.Chaos {
			lines = append(lines, domain.CommentaryLine{Offset: base + jitter(src), Text: r.Name + " turns the form book upside down"})
		}
		for p, perfect := range r.Perfect {
			if perfect {
				lines = append(lines, domain.CommentaryLine{
					Offset: base + jitter(src),
					Text:   fmt.Sprintf("A perfect %s from %s", r.Name, o.ParticipantName(p)),
				})
			}
		}
	}
	lines = append(lines, domain.CommentaryLine{
		Offset: time.Duration(len(o.Rounds)) * roundSpacing,
		Text:   fmt.Sprintf("%s wins on %d points", o.ParticipantName(o.WinnerIndex), o.Totals[o.WinnerIndex]),
	})
	return lines
}

func duelCommentary(src commentarySource, o domain.Outcome) []domain.CommentaryLine {
	var lines []domain.CommentaryLine
	for i, r := range o.Rounds {
		base := time.Duration(i) * roundSpacing
		if i == 0 {
			lines = append(lines, domain.CommentaryLine{
				Offset: base + jitter(src),
				Text:   fmt.Sprintf(duelOpeners[src.Intn(len(duelOpeners))], o.ParticipantName(src.Intn(len(o.Participants)))),
			})
		}
		for p, hit := range r.Maximum {
			if hit {
				lines = append(lines, domain.CommentaryLine{
					Offset: base + jitter(src),
					Text:   fmt.Sprintf("One hundred and eighty for %s", o.ParticipantName(p)),
				})
			}
		}
	}
	end := time.Duration(len(o.Rounds)) * roundSpacing
	if o.WinnerIndex < 0 {
		lines = append(lines, domain.CommentaryLine{Offset: end, Text: fmt.Sprintf("All square on %d", o.Totals[0])})
		return lines
	}
	lines = append(lines, domain.CommentaryLine{
		Offset: end,
		Text:   fmt.Sprintf("%s takes it %d to %d", o.ParticipantName(o.WinnerIndex), o.Totals[o.WinnerIndex], o.Totals[1-o.WinnerIndex]),
	})
	return lines
}

func jitter(src commentarySource) time.Duration {
	return time.Duration(src.Between(5, 80)) * time.Second
}
