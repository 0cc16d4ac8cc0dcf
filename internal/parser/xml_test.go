package parser

import (
	"errors"
	"testing"

	"scanledger/internal/models"
)

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<nmaprun scanner="nmap" args="nmap -sV -oX - scanme.example">
  <host>
    <status state="up" reason="syn-ack"/>
    <address addr="aa:bb:cc:dd:ee:ff" addrtype="mac"/>
    <address addr="198.51.100.7" addrtype="ipv4"/>
    <hostnames>
      <hostname name="scanme.example" type="user"/>
      <hostname name="alias.example" type="PTR"/>
    </hostnames>
    <ports>
      <port protocol="tcp" portid="22">
        <state state="open" reason="syn-ack"/>
        <service name="ssh" product="OpenSSH" version="8.2p1"/>
        <script id="ssh-hostkey" output="2048 aa:bb (RSA)"/>
      </port>
      <port protocol="tcp" portid="80">
        <state state="closed" reason="reset"/>
        <service name="http"/>
      </port>
    </ports>
  </host>
  <host>
    <status state="down" reason="no-response"/>
    <address addr="198.51.100.8" addrtype="ipv4"/>
  </host>
</nmaprun>
`

func TestParseXML(t *testing.T) {
	report, err := ParseXML([]byte(sampleXML), "scan.xml")
	if err != nil {
		t.Fatalf("Failed to parse sample document: %v", err)
	}

	if got := report.ScanMeta["cmdline"]; got != "nmap -sV -oX - scanme.example" {
		t.Errorf("Expected cmdline from args attribute, got %q", got)
	}
	if len(report.Hosts) != 2 {
		t.Fatalf("Expected 2 hosts, got %d", len(report.Hosts))
	}

	h := report.Hosts[0]
	if h.Address != "198.51.100.7" {
		t.Errorf("Expected the mac address to be skipped, got %q", h.Address)
	}
	if h.Hostname != "scanme.example" {
		t.Errorf("Expected first hostname, got %q", h.Hostname)
	}
	if h.Status != models.StatusUp {
		t.Errorf("Expected status up, got %q", h.Status)
	}
	if len(h.Ports) != 2 {
		t.Fatalf("Expected 2 ports, got %d", len(h.Ports))
	}

	ssh := h.Ports[0]
	if ssh.Number != 22 || ssh.Protocol != "tcp" || ssh.State != "open" {
		t.Errorf("Unexpected ssh port row: %+v", ssh)
	}
	if ssh.Product != "OpenSSH" || ssh.Version != "8.2p1" {
		t.Errorf("Unexpected ssh service fields: %+v", ssh)
	}
	if len(ssh.Scripts) != 1 || ssh.Scripts[0].ID != "ssh-hostkey" {
		t.Errorf("Unexpected ssh scripts: %+v", ssh.Scripts)
	}
	if h.Ports[1].State != "closed" {
		t.Errorf("Expected closed http port, got %q", h.Ports[1].State)
	}

	if report.Hosts[1].Status != models.StatusDown {
		t.Errorf("Expected second host down, got %q", report.Hosts[1].Status)
	}
}

func TestParseXMLMalformed(t *testing.T) {
	_, err := ParseXML([]byte("<nmaprun><host></nmaprun>"), "broken.xml")
	if err == nil {
		t.Fatal("Expected an error for a malformed document")
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected a ParseError, got %T", err)
	}
	if perr.Source != "broken.xml" {
		t.Errorf("Expected the source label on the error, got %q", perr.Source)
	}
}

func TestParseXMLBadPortID(t *testing.T) {
	doc := `<nmaprun><host><status state="up"/><ports><port protocol="tcp" portid="http"><state state="open"/></port></ports></host></nmaprun>`
	_, err := ParseXML([]byte(doc), "scan.xml")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected a ParseError for a non-numeric portid, got %v", err)
	}
}

func TestParseXMLNoAddress(t *testing.T) {
	doc := `<nmaprun><host><status state="up"/><address addr="aa:bb:cc:dd:ee:ff" addrtype="mac"/></host></nmaprun>`
	report, err := ParseXML([]byte(doc), "scan.xml")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if report.Hosts[0].Address != "" {
		t.Errorf("Expected empty address when only a mac address exists, got %q", report.Hosts[0].Address)
	}
}

func TestParseXMLUnknownStatus(t *testing.T) {
	doc := `<nmaprun><host><address addr="192.0.2.1" addrtype="ipv4"/></host></nmaprun>`
	report, err := ParseXML([]byte(doc), "scan.xml")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if report.Hosts[0].Status != models.StatusUnknown {
		t.Errorf("Expected unknown status without a status element, got %q", report.Hosts[0].Status)
	}
}
