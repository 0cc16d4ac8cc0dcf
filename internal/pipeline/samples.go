package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

// Sample nmap -oN outputs so the text parser can be exercised without nmap
// installed.
var sampleReports = map[string]string{
	"host_discovery.txt": `# Nmap 7.93 scan initiated Fri Oct 24 12:00:00 2025 as: nmap -sn 192.0.2.0/30 -T4 -oN host_discovery.txt
Nmap scan report for 192.0.2.1
Host is up (0.022s latency).
Nmap scan report for 192.0.2.2
Host is up (0.045s latency).
Nmap done: 4 IP addresses (2 hosts up) scanned in 2.47 seconds
`,
	"tcp_syn_top.txt": `# Nmap 7.93 scan initiated Fri Oct 24 12:01:00 2025 as: nmap -sS --top-ports 100 198.51.100.10 -T3 -oN tcp_syn_top.txt
Nmap scan report for example.test (198.51.100.10)
Host is up (0.018s latency).
Not shown: 97 closed ports
PORT    STATE SERVICE
22/tcp  open  ssh
80/tcp  open  http
443/tcp open  https
8080/tcp closed http-proxy
Nmap done: 1 IP address (1 host up) scanned in 5.42 seconds
`,
	"service_version.txt": `# Nmap 7.93 scan initiated Fri Oct 24 12:02:00 2025 as: nmap -sS -sV -p 22,80,443 203.0.113.5 -T3 -oN service_version.txt
Nmap scan report for 203.0.113.5
Host is up (0.030s latency).

PORT    STATE SERVICE VERSION
22/tcp  open  ssh     OpenSSH 8.2p1 Ubuntu 4ubuntu0.3 (protocol 2.0)
80/tcp  open  http    Apache httpd 2.4.41 ((Ubuntu))
443/tcp open  https   nginx 1.18.0
Service Info: OS: Linux; CPE: cpe:/o:linux:linux_kernel

Nmap done: 1 IP address (1 host up) scanned in 3.34 seconds
`,
	"os_detect.txt": `# Nmap 7.93 scan initiated Fri Oct 24 12:03:00 2025 as: nmap -A -p 22,80 --script=banner 198.51.100.20 -oN os_detect.txt
Nmap scan report for 198.51.100.20
Host is up (0.050s latency).

PORT   STATE SERVICE VERSION
22/tcp open  ssh     OpenSSH 7.6p1 Debian 4
80/tcp open  http    Apache httpd 2.4.29

Device type: general purpose
Running: Linux 3.X|4.X
OS CPE: cpe:/o:linux:linux_kernel
OS details: Linux 3.10 - 4.15
Network Distance: 1 hop

Host script results:
|_banner: Apache/2.4.29 (Debian)
|_ssh-hostkey: SSH-2.0-OpenSSH_7.6p1 Debian-4

Nmap done: 1 IP address (1 host up) scanned in 8.01 seconds
`,
}

// WriteSamples writes the sample reports into dir and returns their paths in
// a stable order.
func WriteSamples(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create samples directory: %w", err)
	}

	names := []string{"host_discovery.txt", "tcp_syn_top.txt", "service_version.txt", "os_detect.txt"}
	paths := make([]string, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(sampleReports[name]), 0644); err != nil {
			return nil, fmt.Errorf("failed to write sample %s: %w", name, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
