package parser

import (
	"encoding/xml"
	"fmt"
	"strconv"

	"scanledger/internal/models"
)

// XMLParserName and XMLParserVersion identify the -oX parser in envelopes.
const (
	XMLParserName    = "nmap_xml"
	XMLParserVersion = "1.1.0"
)

// nmapRun is the root element of nmap XML output.
type nmapRun struct {
	XMLName xml.Name  `xml:"nmaprun"`
	Args    string    `xml:"args,attr"`
	Hosts   []xmlHost `xml:"host"`
}

type xmlHost struct {
	Status    xmlStatus    `xml:"status"`
	Addresses []xmlAddress `xml:"address"`
	Hostnames xmlHostnames `xml:"hostnames"`
	Ports     xmlPorts     `xml:"ports"`
}

type xmlStatus struct {
	State string `xml:"state,attr"`
}

type xmlAddress struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
}

type xmlHostnames struct {
	Hostname []xmlHostname `xml:"hostname"`
}

type xmlHostname struct {
	Name string `xml:"name,attr"`
}

type xmlPorts struct {
	Port []xmlPort `xml:"port"`
}

type xmlPort struct {
	Protocol string      `xml:"protocol,attr"`
	PortID   string      `xml:"portid,attr"`
	State    xmlPState   `xml:"state"`
	Service  xmlService  `xml:"service"`
	Scripts  []xmlScript `xml:"script"`
}

type xmlPState struct {
	State string `xml:"state,attr"`
}

type xmlService struct {
	Name    string `xml:"name,attr"`
	Product string `xml:"product,attr"`
	Version string `xml:"version,attr"`
}

type xmlScript struct {
	ID     string `xml:"id,attr"`
	Output string `xml:"output,attr"`
}

// ParseXML converts one nmap XML document into a ScanReport. Unlike the text
// parser there is no recovery: a malformed document or a malformed required
// attribute fails the whole document with a ParseError.
func ParseXML(raw []byte, sourceLabel string) (*models.ScanReport, error) {
	var run nmapRun
	if err := xml.Unmarshal(raw, &run); err != nil {
		return nil, &ParseError{Source: sourceLabel, Err: err}
	}

	report := &models.ScanReport{
		SourceLabel: sourceLabel,
		ScanMeta:    map[string]string{},
	}
	if run.Args != "" {
		report.ScanMeta["cmdline"] = run.Args
	}

	for _, h := range run.Hosts {
		host := &models.Host{
			Status: models.StatusUnknown,
			Ports:  []models.Port{},
		}

		// First address whose family is IPv4, IPv6, or unspecified, in
		// document order.
		for _, a := range h.Addresses {
			if a.AddrType == "ipv4" || a.AddrType == "ipv6" || a.AddrType == "" {
				host.Address = a.Addr
				break
			}
		}

		switch h.Status.State {
		case "up":
			host.Status = models.StatusUp
		case "down":
			host.Status = models.StatusDown
		}

		if len(h.Hostnames.Hostname) > 0 {
			host.Hostname = h.Hostnames.Hostname[0].Name
		}

		for _, p := range h.Ports.Port {
			number, err := strconv.Atoi(p.PortID)
			if err != nil {
				return nil, &ParseError{
					Source: sourceLabel,
					Err:    fmt.Errorf("invalid portid %q: %w", p.PortID, err),
				}
			}
			port := models.Port{
				Number:   number,
				Protocol: p.Protocol,
				State:    p.State.State,
				Service:  p.Service.Name,
				Product:  p.Service.Product,
				Version:  p.Service.Version,
			}
			for _, s := range p.Scripts {
				port.Scripts = append(port.Scripts, models.ScriptResult{ID: s.ID, Output: s.Output})
			}
			host.Ports = append(host.Ports, port)
		}

		report.Hosts = append(report.Hosts, host)
	}

	return report, nil
}
