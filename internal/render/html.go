// Package render turns chart report markdown into HTML and PDF documents.
package render

import (
	_ "embed"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed style.css
var defaultStyleCSS string

// Meta is shown in the document header above the report body.
type Meta struct {
	ChartID     string
	Ascendant   string
	Language    string
	GeneratedAt time.Time
	Mismatches  int
	Repairs     int
}

var (
	reAppendix      = regexp.MustCompile(`(?i)<h2([^>]*)>\s*Appendix\s*</h2>`)
	reSectionHeader = regexp.MustCompile(`(?i)<h2([^>]*)>\s*(Active Dasha|House Mismatches|Repairs)\s*</h2>`)
)

// HTML converts report markdown (GitHub flavoured) into a standalone
// document using the built-in stylesheet.
func HTML(markdown string, meta Meta) (string, error) {
	return document(markdown, meta, defaultStyleCSS)
}

func document(markdown string, meta Meta, styleCSS string) (string, error) {
	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	contentHTML := applyPrintLayoutHooks(content.String())

	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(title(meta)) + "</title>" +
		"<style>" + styleCSS + "\n" +
		"html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;} " +
		"body{background:#fff !important;padding:0.6rem;} .pdf-wrap{max-width:1000px;margin:0 auto;} " +
		".report-html table{width:100% !important;border-collapse:collapse !important;border:1px solid #a8a29e !important;font-size:0.8rem !important;} " +
		".report-html th,.report-html td{border:1px solid #a8a29e !important;padding:0.35rem 0.45rem !important;text-align:left !important;vertical-align:top !important;} " +
		".report-html thead th{background:#f1f5f9 !important;font-weight:700 !important;} " +
		".report-html h2[data-section-heading='true']{font-weight:700 !important;letter-spacing:0.01em;} " +
		`h2[data-page-break-before="true"]{break-before:page;page-break-before:always;} ` +
		"@media print{ @page{size:auto;margin:12mm;} body{padding:0;} .pdf-wrap{max-width:none;} }" +
		"</style></head><body>" +
		"<div class='pdf-wrap'><section class='report-viewer'><div class='report-header'>" +
		"<div class='report-meta'>" + metaHTML(meta) + "</div>" +
		"<div class='report-badges'>" + badgeHTML(meta) + "</div>" +
		"</div><div class='report-html'>" + contentHTML + "</div></section></div>" +
		"</body></html>", nil
}

// applyPrintLayoutHooks starts the JSON appendix on a new page and marks the
// headings a reader scans for.
func applyPrintLayoutHooks(contentHTML string) string {
	out := reAppendix.ReplaceAllString(contentHTML, `<h2$1 data-page-break-before="true">Appendix</h2>`)
	return reSectionHeader.ReplaceAllString(out, `<h2$1 data-section-heading="true">$2</h2>`)
}

func title(meta Meta) string {
	if meta.Ascendant == "" {
		return "Chart Report"
	}
	return "Chart Report: " + meta.Ascendant
}

func metaHTML(meta Meta) string {
	var out strings.Builder
	if meta.ChartID != "" {
		out.WriteString("<div><strong>Chart:</strong> " + html.EscapeString(meta.ChartID) + "</div>")
	}
	if meta.Ascendant != "" {
		out.WriteString("<div><strong>Ascendant:</strong> " + html.EscapeString(meta.Ascendant) + "</div>")
	}
	if !meta.GeneratedAt.IsZero() {
		out.WriteString("<div><strong>Date:</strong> " + html.EscapeString(meta.GeneratedAt.UTC().Format("January 2, 2006 at 15:04 UTC")) + "</div>")
	}
	return out.String()
}

func badgeHTML(meta Meta) string {
	var out strings.Builder
	if meta.Language != "" {
		out.WriteString("<span class='report-badge'>" + html.EscapeString(strings.ToUpper(meta.Language)) + "</span>")
	}
	if meta.Mismatches > 0 {
		out.WriteString("<span class='report-badge'>House mismatches: " + strconv.Itoa(meta.Mismatches) + "</span>")
	}
	if meta.Repairs > 0 {
		out.WriteString("<span class='report-badge'>Repairs: " + strconv.Itoa(meta.Repairs) + "</span>")
	}
	return out.String()
}
