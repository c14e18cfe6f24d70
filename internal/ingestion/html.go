package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/golf-qa/backend/internal/storage/models"
	"github.com/golf-qa/backend/pkg/logger"
	"github.com/golf-qa/backend/pkg/retry"
)

const userAgent = "golf-qa-backend/1.0 (rules refresh)"

var (
	ruleHeading = regexp.MustCompile(`(?i)^\s*Rule\s+(\d+)\s*[:.\-]?\s*(.*)$`)
	whitespace  = regexp.MustCompile(`[ \t]+`)
)

// HTMLSource reads the rules from a single HTML page. Each h2 or h3 heading of the form
// "Rule <n>: <name>" starts a rule; the paragraphs and list items up to the next heading
// are its content. Courses come from the built-in directory.
type HTMLSource struct {
	url         string
	client      *http.Client
	retryConfig retry.Config
}

func NewHTMLSource(url string, timeout time.Duration) *HTMLSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTMLSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
		retryConfig: retry.Config{
			MaxAttempts:    3,
			InitialDelay:   time.Second,
			MaxDelay:       10 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.2,
			Logger:         logger.GetLogger(),
		},
	}
}

func (s *HTMLSource) Name() string { return "html" }

func (s *HTMLSource) FetchRules(ctx context.Context) ([]models.Rule, error) {
	body, err := retry.DoWithResult(ctx, s.retryConfig, func() ([]byte, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rules page: %w", err)
	}

	rules, err := ParseRules(bytes.NewReader(body), s.url)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("no rules found at %s", s.url)
	}

	logger.Info("Rules fetched", zap.String("url", s.url), zap.Int("rules", len(rules)))
	return rules, nil
}

func (s *HTMLSource) FetchCourses(ctx context.Context) ([]models.Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return SampleCourses(), nil
}

func (s *HTMLSource) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, &retry.Permanent{Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &retry.Permanent{Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	return io.ReadAll(resp.Body)
}

// ParseRules extracts rules from an HTML document.
func ParseRules(r io.Reader, sourceURL string) ([]models.Rule, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside").Remove()

	effectiveDate := strings.TrimSpace(doc.Find("[data-effective-date]").First().AttrOr("data-effective-date", ""))
	if effectiveDate == "" {
		effectiveDate = rulesEffectiveDate
	}

	var rules []models.Rule
	seen := make(map[string]bool)

	doc.Find("h2, h3").Each(func(_ int, heading *goquery.Selection) {
		title := cleanText(heading.Text())
		match := ruleHeading.FindStringSubmatch(title)
		if match == nil || seen[match[1]] {
			return
		}

		var paragraphs []string
		heading.NextUntil("h2, h3").Each(func(_ int, s *goquery.Selection) {
			if goquery.NodeName(s) == "ul" || goquery.NodeName(s) == "ol" {
				s.Find("li").Each(func(_ int, li *goquery.Selection) {
					if text := cleanText(li.Text()); text != "" {
						paragraphs = append(paragraphs, "- "+text)
					}
				})
				return
			}
			if text := cleanText(s.Text()); text != "" {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) == 0 {
			return
		}

		section := strings.TrimSpace(match[2])
		if section == "" {
			section = "General Rules"
		}

		seen[match[1]] = true
		rules = append(rules, models.Rule{
			RuleID:        match[1],
			Section:       section,
			Title:         title,
			Content:       strings.Join(paragraphs, "\n\n"),
			EffectiveDate: effectiveDate,
			SourceURL:     sourceURL,
		})
	})

	return rules, nil
}

func cleanText(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(whitespace.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, " ")
}
