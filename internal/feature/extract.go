package feature

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"regexp"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/juanre/mail-flow/internal/errs"
)

var (
	controlByte    = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)
	htmlTag        = regexp.MustCompile(`(?s)<[^>]+>`)
	wordToken      = regexp.MustCompile(`[\w]+`)
	fromDomainForm = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
)

// Extractor builds Items from raw bytes + source-declared origin.
type Extractor struct {
	logger       hclog.Logger
	maxBodyChars int
}

// Config configures an Extractor.
type Config struct {
	Logger       hclog.Logger
	MaxBodyChars int // defaults to MaxBodyChars
}

// New creates a feature Extractor.
func New(cfg Config) *Extractor {
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	if cfg.MaxBodyChars <= 0 {
		cfg.MaxBodyChars = MaxBodyChars
	}
	return &Extractor{logger: cfg.Logger.Named("feature-extractor"), maxBodyChars: cfg.MaxBodyChars}
}

// RawItem is the shape yielded by a source adapter: raw bytes plus origin
// metadata and already-separated attachments (for sources like Slack or
// gdocs that don't hand the extractor a raw MIME blob).
type RawItem struct {
	Source      string
	RawBytes    []byte
	Origin      map[string]any
	Attachments []Attachment // pre-extracted; mail source derives these from RawBytes instead
}

// Extract normalizes a RawItem into an Item.
func (e *Extractor) Extract(r RawItem) (*Item, error) {
	sizeMB := float64(len(r.RawBytes)) / (1024 * 1024)
	if sizeMB > MaxEmailSizeMB {
		return nil, errs.New(errs.InputTooLarge, "extract",
			fmt.Errorf("input is %.1fMB, exceeds MAX_EMAIL_SIZE_MB=%d", sizeMB, MaxEmailSizeMB))
	}

	origin := cloneOrigin(r.Origin)

	var body, bodyHTML string
	var atts []Attachment
	var err error

	if r.Source == "mail" && len(r.RawBytes) > 0 {
		body, bodyHTML, atts, err = parseMIME(r.RawBytes, origin)
		if err != nil {
			return nil, errs.New(errs.InputParseError, "extract-mime", err)
		}
	} else {
		body = sanitizeText(string(r.RawBytes))
		atts = r.Attachments
	}

	if bodyHTML != "" && body == "" {
		body = htmlToText(bodyHTML)
	}
	body = truncate(sanitizeText(body), e.maxBodyChars)

	if len(atts) > MaxAttachmentCount {
		atts = atts[:MaxAttachmentCount]
	}

	item := &Item{
		Source:      r.Source,
		Origin:      origin,
		Body:        body,
		BodyHTML:    bodyHTML,
		Attachments: atts,
	}
	item.Features = deriveFeatures(item)
	return item, nil
}

func cloneOrigin(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// parseMIME decodes an RFC 822 message with stdlib net/mail + mime (see
// DESIGN.md for why this stays on the standard library).
func parseMIME(raw []byte, origin map[string]any) (body, bodyHTML string, atts []Attachment, err error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return "", "", nil, fmt.Errorf("parsing RFC822 message: %w", err)
	}

	if _, ok := origin["subject"]; !ok {
		origin["subject"] = msg.Header.Get("Subject")
	}
	if _, ok := origin["from"]; !ok {
		origin["from"] = msg.Header.Get("From")
	}
	if _, ok := origin["to"]; !ok {
		origin["to"] = msg.Header.Get("To")
	}
	if _, ok := origin["message_id"]; !ok {
		origin["message_id"] = strings.Trim(msg.Header.Get("Message-Id"), "<>")
	}
	if _, ok := origin["date"]; !ok {
		origin["date"] = msg.Header.Get("Date")
	}
	if _, ok := origin["references"]; !ok {
		origin["references"] = msg.Header.Get("References")
	}
	if _, ok := origin["in_reply_to"]; !ok {
		origin["in_reply_to"] = strings.Trim(msg.Header.Get("In-Reply-To"), "<>")
	}

	mediaType, params, mErr := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if mErr != nil || !strings.HasPrefix(mediaType, "multipart/") {
		b, _ := io.ReadAll(msg.Body)
		if strings.HasPrefix(mediaType, "text/html") {
			bodyHTML = string(b)
		} else {
			body = string(b)
		}
		return body, bodyHTML, nil, nil
	}

	mr := multipart.NewReader(msg.Body, params["boundary"])
	for {
		part, pErr := mr.NextPart()
		if pErr == io.EOF {
			break
		}
		if pErr != nil {
			return body, bodyHTML, atts, fmt.Errorf("reading multipart: %w", pErr)
		}

		partType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		disposition := part.Header.Get("Content-Disposition")
		filename := part.FileName()

		data, rErr := io.ReadAll(part)
		if rErr != nil {
			return body, bodyHTML, atts, fmt.Errorf("reading part: %w", rErr)
		}

		isAttachment := strings.Contains(disposition, "attachment") || filename != ""
		switch {
		case isAttachment:
			atts = append(atts, Attachment{
				Filename:   filename,
				Mime:       partType,
				Size:       int64(len(data)),
				IsPDF:      partType == "application/pdf",
				PayloadRef: data,
			})
		case strings.HasPrefix(partType, "text/plain") && body == "":
			body = string(data)
		case strings.HasPrefix(partType, "text/html") && bodyHTML == "":
			bodyHTML = string(data)
		}
	}
	return body, bodyHTML, atts, nil
}

func sanitizeText(s string) string {
	return controlByte.ReplaceAllString(s, "")
}

func htmlToText(html string) string {
	return strings.TrimSpace(htmlTag.ReplaceAllString(html, " "))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func deriveFeatures(it *Item) Features {
	f := Features{
		SubjectTokens: map[string]struct{}{},
		BodyTokens:    map[string]struct{}{},
	}

	from, _ := it.Origin["from"].(string)
	f.FromDomain = extractDomain(from)

	to, _ := it.Origin["to"].(string)
	f.To = strings.ToLower(strings.TrimSpace(to))

	subject, _ := it.Origin["subject"].(string)
	addTokens(f.SubjectTokens, subject, MaxSubjectTokens)
	addTokens(f.BodyTokens, it.Body, MaxBodyTokens)

	f.NumAttachments = len(it.Attachments)
	for _, a := range it.Attachments {
		if a.IsPDF {
			f.HasPDF = true
			break
		}
	}
	return f
}

func extractDomain(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return ""
	}
	domain := strings.ToLower(strings.TrimRight(addr[at+1:], ">"))
	domain = strings.TrimSpace(domain)
	if !fromDomainForm.MatchString(domain) {
		return ""
	}
	return domain
}

func addTokens(set map[string]struct{}, text string, max int) {
	for _, tok := range wordToken.FindAllString(strings.ToLower(text), -1) {
		if len(set) >= max {
			return
		}
		set[tok] = struct{}{}
	}
}
