package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/flowledger/ledgerd/internal/classify"
	"github.com/flowledger/ledgerd/internal/model"
)

// ErrReviewAborted is returned when the user quits the review session.
var ErrReviewAborted = errors.New("review aborted")

// ReviewItem pairs a quarantine record with its underlying event for display.
type ReviewItem struct {
	Record model.QuarantineRecord
	Event  *model.UniversalEvent
}

// ReviewOutcome is what the user decided for one quarantined event.
type ReviewOutcome struct {
	Correction *model.Correction
	Decision   classify.Decision
	Skipped    bool
}

// Prompter runs the interactive quarantine review loop.
type Prompter struct {
	writer      io.Writer
	reader      *bufio.Reader
	progressBar *progressbar.ProgressBar
	categories  []string
}

// NewPrompter creates a prompter with the given reader and writer. Nil
// arguments default to stdin and stdout.
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Prompter{
		reader: bufio.NewReader(reader),
		writer: writer,
	}
}

// SetCategories provides the taxonomy shown when correcting a category.
func (p *Prompter) SetCategories(names []string) {
	p.categories = append([]string(nil), names...)
	sort.Strings(p.categories)
}

// StartSession prints the session header and initializes the progress bar.
func (p *Prompter) StartSession(total int) {
	fmt.Fprintln(p.writer, FormatTitle("Quarantine Review"))
	fmt.Fprintln(p.writer, SubtleStyle.Render(
		fmt.Sprintf("%d event(s) awaiting review", total)))
	fmt.Fprintln(p.writer)

	p.progressBar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionSetDescription("Reviewing"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// Review prompts for a decision on one quarantined event.
func (p *Prompter) Review(ctx context.Context, item ReviewItem) (ReviewOutcome, error) {
	select {
	case <-ctx.Done():
		return ReviewOutcome{}, ctx.Err()
	default:
	}

	fmt.Fprintln(p.writer, RenderBox("Quarantined Event", p.formatItem(item)))
	fmt.Fprintln(p.writer, "  [A] Approve as classified")
	fmt.Fprintln(p.writer, "  [C] Approve with corrected category")
	fmt.Fprintln(p.writer, "  [R] Reject")
	fmt.Fprintln(p.writer, "  [S] Skip for now")
	fmt.Fprintln(p.writer, "  [Q] Quit review")
	fmt.Fprintln(p.writer)

	choice, err := p.promptChoice(ctx, "Choice", []string{"a", "c", "r", "s", "q"})
	if err != nil {
		return ReviewOutcome{}, err
	}

	switch choice {
	case "a":
		p.advance()
		return ReviewOutcome{Decision: classify.DecisionApprove}, nil
	case "c":
		correction, promptErr := p.promptCorrection(ctx)
		if promptErr != nil {
			return ReviewOutcome{}, promptErr
		}
		p.advance()
		return ReviewOutcome{Decision: classify.DecisionApprove, Correction: correction}, nil
	case "r":
		p.advance()
		return ReviewOutcome{Decision: classify.DecisionReject}, nil
	case "s":
		p.advance()
		return ReviewOutcome{Skipped: true}, nil
	default:
		return ReviewOutcome{}, ErrReviewAborted
	}
}

// FinishSession prints the session summary.
func (p *Prompter) FinishSession(approved, rejected, skipped int) {
	if p.progressBar != nil {
		_ = p.progressBar.Finish()
	}
	fmt.Fprintln(p.writer)
	fmt.Fprintln(p.writer, FormatSuccess(fmt.Sprintf(
		"Review complete: %d approved, %d rejected, %d skipped",
		approved, rejected, skipped)))
}

func (p *Prompter) advance() {
	if p.progressBar != nil {
		_ = p.progressBar.Add(1)
	}
}

func (p *Prompter) formatItem(item ReviewItem) string {
	var sb strings.Builder

	event := item.Event
	fmt.Fprintf(&sb, "Entity:     %s\n", event.Entity)
	if event.Amount != nil {
		fmt.Fprintf(&sb, "Amount:     %.2f\n", *event.Amount)
	}
	if !event.Timestamp.IsZero() {
		fmt.Fprintf(&sb, "Date:       %s\n", event.Timestamp.Format(time.DateOnly))
	}
	fmt.Fprintf(&sb, "Category:   %s", event.Category)
	if event.SubCategory != "" {
		fmt.Fprintf(&sb, " / %s", event.SubCategory)
	}
	sb.WriteByte('\n')
	fmt.Fprintf(&sb, "Confidence: %s\n", WarningStyle.Render(fmt.Sprintf("%d%%", event.Confidence)))
	fmt.Fprintf(&sb, "Source:     %s (row %d)\n", event.SourceFile, event.RowIndex)
	fmt.Fprintf(&sb, "Reason:     %s", item.Record.Reason)

	if len(event.Payload) > 0 {
		keys := make([]string, 0, len(event.Payload))
		for k := range event.Payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("\n" + SubtleStyle.Render("Extra fields:"))
		for _, k := range keys {
			fmt.Fprintf(&sb, "\n  %s: %s", k, event.Payload[k])
		}
	}

	return sb.String()
}

func (p *Prompter) promptCorrection(ctx context.Context) (*model.Correction, error) {
	if len(p.categories) > 0 {
		fmt.Fprintln(p.writer, SubtleStyle.Render("Known categories: "+strings.Join(p.categories, ", ")))
	}

	category, err := p.promptLine(ctx, "Category")
	if err != nil {
		return nil, err
	}
	if category == "" {
		return nil, fmt.Errorf("category cannot be empty")
	}

	subCategory, err := p.promptLine(ctx, "Sub-category (optional)")
	if err != nil {
		return nil, err
	}

	return &model.Correction{Category: category, SubCategory: subCategory}, nil
}

func (p *Prompter) promptChoice(ctx context.Context, prompt string, valid []string) (string, error) {
	for {
		line, err := p.promptLine(ctx, prompt)
		if err != nil {
			return "", err
		}
		choice := strings.ToLower(line)
		for _, v := range valid {
			if choice == v {
				return choice, nil
			}
		}
		fmt.Fprintln(p.writer, FormatWarning("Please enter one of: "+strings.Join(valid, ", ")))
	}
}

// promptLine reads one line, returning early if ctx is canceled. The
// read goroutine may outlive a canceled call; the buffered channel keeps it
// from leaking.
func (p *Prompter) promptLine(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(p.writer, FormatPrompt(prompt))

	type result struct {
		err  error
		line string
	}
	ch := make(chan result, 1)
	go func() {
		line, err := p.reader.ReadString('\n')
		ch <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil && res.line == "" {
			return "", res.err
		}
		return strings.TrimSpace(res.line), nil
	}
}
