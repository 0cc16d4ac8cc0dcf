// Package parser converts raw nmap output into scan reports. It contains a
// best-effort line parser for the human-readable -oN format and a strict
// parser for the -oX XML format.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"scanledger/internal/models"
)

// TextParserName and TextParserVersion identify the -oN parser in envelopes.
const (
	TextParserName    = "nmap_text"
	TextParserVersion = "1.1.0"
)

// Line patterns for nmap -oN output, in match priority order.
var (
	startMetaRe   = regexp.MustCompile(`^# Nmap .* initiated .* as: (.+)$`)
	hostHeaderRe  = regexp.MustCompile(`^Nmap scan report for (.+)$`)
	hostUpRe      = regexp.MustCompile(`^Host is up`)
	portHeaderRe  = regexp.MustCompile(`(?i)^\s*PORT\s+STATE\s+SERVICE`)
	portLineRe    = regexp.MustCompile(`^\s*(\d+)/(tcp|udp)\s+(\S+)\s+(\S+)(?:\s+(.*))?$`)
	osDeviceRe    = regexp.MustCompile(`(?i)^Device type:\s*(.+)$`)
	osRunningRe   = regexp.MustCompile(`(?i)^Running:\s*(.+)$`)
	osDetailsRe   = regexp.MustCompile(`(?i)^OS details:\s*(.+)$`)
	serviceInfoRe = regexp.MustCompile(`(?i)^Service Info:\s*(.+)$`)
	scriptLineRe  = regexp.MustCompile(`^\s*\|[_ ]?([^:]+):\s*(.*)$`)
	bareIPv4Re    = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)
)

// cmdlineScanWindow is how many leading lines are checked for the
// "scan initiated ... as:" metadata line.
const cmdlineScanWindow = 10

// textMode is the parser state between lines.
type textMode int

const (
	seekingHost textMode = iota // no active host
	inHost                      // host active, outside a port table
	inPortTable                 // collecting port rows
)

// textState is the full parser state threaded through the line loop: the
// mode, the active host being filled in, and the report accumulated so far.
type textState struct {
	mode   textMode
	active *models.Host
	report *models.ScanReport
}

// flush moves the active host, if any, into the report.
func (st *textState) flush() {
	if st.active != nil {
		st.report.Hosts = append(st.report.Hosts, st.active)
		st.active = nil
	}
	st.mode = seekingHost
}

// ParseText converts one nmap -oN report into a ScanReport. It never fails:
// lines that match no rule are skipped and parsing continues.
func ParseText(text, sourceLabel string) *models.ScanReport {
	logger := log.With().Str("component", "parser").Str("format", "text").Logger()

	st := &textState{
		mode: seekingHost,
		report: &models.ScanReport{
			SourceLabel: sourceLabel,
			ScanMeta:    map[string]string{},
		},
	}

	lines := strings.Split(text, "\n")

	// The triggering command line only appears in the leading comment block.
	for i, ln := range lines {
		if i >= cmdlineScanWindow {
			break
		}
		if m := startMetaRe.FindStringSubmatch(strings.TrimSpace(ln)); m != nil {
			st.report.ScanMeta["cmdline"] = strings.TrimSpace(m[1])
			break
		}
	}

	for _, ln := range lines {
		parseTextLine(st, strings.TrimRight(ln, "\r\n"), logger)
	}
	st.flush()

	if st.report.UnparsedLines > 0 {
		logger.Debug().
			Str("source", sourceLabel).
			Int("unparsedLines", st.report.UnparsedLines).
			Msg("Skipped unclassified report lines")
	}
	return st.report
}

// parseTextLine advances the state machine by one physical line. Rules are
// tried in a fixed priority order; the first match wins.
func parseTextLine(st *textState, s string, logger zerolog.Logger) {
	// New host header: flush the previous host and start a fresh one.
	if m := hostHeaderRe.FindStringSubmatch(s); m != nil {
		st.flush()
		hostname, address := splitHostToken(m[1])
		st.active = &models.Host{
			Hostname:      hostname,
			Address:       address,
			Status:        models.StatusUnknown,
			Ports:         []models.Port{},
			ScriptResults: map[string]string{},
		}
		st.mode = inHost
		return
	}

	if st.active == nil {
		return
	}

	if hostUpRe.MatchString(s) {
		st.active.Status = models.StatusUp
		return
	}

	if portHeaderRe.MatchString(s) {
		st.mode = inPortTable
		return
	}

	if st.mode == inPortTable {
		trimmed := strings.TrimSpace(s)
		if trimmed == "" || !startsWithDigit(trimmed) {
			// Table is closed; the line still falls through to the
			// OS/service/script rules below.
			st.mode = inHost
		} else {
			if m := portLineRe.FindStringSubmatch(s); m != nil {
				number, err := strconv.Atoi(m[1])
				if err != nil {
					logger.Warn().Str("port", m[1]).Msg("Invalid port number in table row")
					return
				}
				st.active.Ports = append(st.active.Ports, models.Port{
					Number:   number,
					Protocol: m[2],
					State:    m[3],
					Service:  m[4],
					Product:  strings.TrimSpace(m[5]),
				})
			}
			return
		}
	}

	if m := osDeviceRe.FindStringSubmatch(s); m != nil {
		st.active.OS.DeviceType = strings.TrimSpace(m[1])
		return
	}
	if m := osRunningRe.FindStringSubmatch(s); m != nil {
		st.active.OS.Running = strings.TrimSpace(m[1])
		return
	}
	if m := osDetailsRe.FindStringSubmatch(s); m != nil {
		st.active.OS.Details = strings.TrimSpace(m[1])
		return
	}
	if m := serviceInfoRe.FindStringSubmatch(s); m != nil {
		st.active.ServiceInfo = strings.TrimSpace(m[1])
		return
	}
	if m := scriptLineRe.FindStringSubmatch(s); m != nil {
		st.active.ScriptResults[strings.TrimSpace(m[1])] = strings.TrimSpace(m[2])
		return
	}

	if strings.TrimSpace(s) != "" {
		st.report.UnparsedLines++
	}
}

// splitHostToken parses the token of a "scan report for" header. Tokens of
// the form "name (addr)" split on the last '('; a bare IPv4 literal is
// address-only; anything else is a bare hostname.
func splitHostToken(token string) (hostname, address string) {
	token = strings.TrimSpace(token)
	if idx := strings.LastIndex(token, "("); idx >= 0 && strings.HasSuffix(token, ")") {
		name := strings.TrimSpace(token[:idx])
		addr := strings.TrimSpace(token[idx+1 : len(token)-1])
		return name, addr
	}
	if bareIPv4Re.MatchString(token) {
		return "", token
	}
	return token, ""
}

func startsWithDigit(s string) bool {
	return len(s) > 0 && s[0] >= '0' && s[0] <= '9'
}
