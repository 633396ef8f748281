package container

import (
	"fmt"
	"strings"
)

// Command is one command executed inside a server container.
type Command struct {
	Args []string
	// Retry runs the command a second time after a short pause when it exits
	// non-zero.
	Retry bool
}

func cmd(args ...string) Command {
	return Command{Args: args}
}

// background starts a foreground daemon detached from the exec session.
func background(args ...string) Command {
	return Command{Args: []string{"sh", "-c", strings.Join(args, " ") + " >/dev/null 2>&1 &"}}
}

// Variant is everything that differs between server products. The rest of
// the container handling is shared by Driver.
type Variant struct {
	Name       string
	Image      string
	ZoneDir    string
	ConfigPath string
	ConfigMode int64
	// Config renders the configuration serving zoneFile (a base name) for
	// origin.
	Config func(origin, zoneFile string) string
	Stop   []Command
	Start  func(zoneFile string) []Command
}

func staticStart(cmds ...Command) func(string) []Command {
	return func(string) []Command { return cmds }
}

const yadifadConf = `<main>
        network-model               "single"
        logpath                     "/usr/local/var/log/yadifa"
        pidfile                     "/usr/local/var/run/yadifad.pid"
        datapath                    "/usr/local/var/zones/masters"
        keyspath                    "/usr/local/var/zones/keys"
        xfrpath                     "/usr/local/var/zones/xfr"
        group                       root
        listen                      0.0.0.0
        allow-notify                none
        allow-control               yadifa-controller
</main>

<acl>
        yadifa-controller key controller-key
</acl>

<key>
        name            controller-key
        algorithm       hmac-md5
        secret          ControlDaemonKey
</key>

<zone>
        type                    master
        domain                  %s
        file                    %s
</zone>
`

var variants = map[string]Variant{
	"bind": {
		Name:       "bind",
		Image:      "bind",
		ZoneDir:    "/usr/local/etc",
		ConfigPath: "/usr/local/etc/named.conf",
		Config: func(origin, zoneFile string) string {
			return fmt.Sprintf("options {\n    recursion no;\n};\n\nzone \"%s\" {\n    type master;\n    check-names ignore;\n    file \"/usr/local/etc/%s\";\n};\n", origin, zoneFile)
		},
		Stop:  []Command{cmd("pkill", "named")},
		Start: staticStart(cmd("named"), cmd("rndc", "flush")),
	},
	"nsd": {
		Name:       "nsd",
		Image:      "nsd",
		ZoneDir:    "/etc/nsd/zones",
		ConfigPath: "/etc/nsd/nsd.conf",
		Config: func(origin, zoneFile string) string {
			return fmt.Sprintf(`server:
    server-count: 1
    ip4-only: yes
    zonesdir: "/etc/nsd/zones/"
    pidfile: "/var/run/nsd.pid"
    logfile: "/var/log/nsd.log"
    verbosity: 3
    username: root

remote-control:
    control-enable: yes

zone:
    name: %s
    zonefile: %s
`, origin, zoneFile)
		},
		Stop:  []Command{cmd("nsd-control", "stop")},
		Start: staticStart(cmd("nsd-control", "start")),
	},
	"knot": {
		Name:       "knot",
		Image:      "knot",
		ZoneDir:    "/usr/local/var/lib/knot",
		ConfigPath: "/usr/local/etc/knot/knot.conf",
		Config: func(origin, zoneFile string) string {
			return fmt.Sprintf(`server:
    listen: 0.0.0.0@53
    listen: ::@53
    rundir: "/usr/local/var/run/knot"

zone:
  - domain: %s
    storage: /usr/local/var/lib/knot/
    file: %s

log:
  - target: /var/log/knot.log
    any: debug
`, origin, zoneFile)
		},
		Stop: []Command{cmd("knotc", "-c", "/usr/local/etc/knot/knot.conf", "stop")},
		Start: func(zoneFile string) []Command {
			return []Command{
				cmd("dos2unix", "/usr/local/var/lib/knot/"+zoneFile),
				cmd("knotd", "-d", "-c", "/usr/local/etc/knot/knot.conf"),
			}
		},
	},
	"powerdns": {
		Name:       "powerdns",
		Image:      "powerdns",
		ZoneDir:    "/usr/local/etc",
		ConfigPath: "/usr/local/etc/bindbackend.conf",
		Config: func(origin, zoneFile string) string {
			return fmt.Sprintf("zone \"%s\" {\n  file \"/usr/local/etc/%s\";\n  type master;\n};\n", origin, zoneFile)
		},
		Stop:  []Command{cmd("pkill", "pdns_server")},
		Start: staticStart(cmd("pdns_server", "--daemon")),
	},
	"coredns": {
		Name:       "coredns",
		Image:      "coredns",
		ZoneDir:    "/go/coredns",
		ConfigPath: "/go/coredns/Corefile",
		Config: func(origin, zoneFile string) string {
			return fmt.Sprintf("%s:53 {\n\tfile %s\n\tlog\n\terrors\n}\n", origin, zoneFile)
		},
		Stop:  []Command{cmd("pkill", "coredns")},
		Start: staticStart(background("cd", "/go/coredns", "&&", "./coredns")),
	},
	"yadifa": {
		Name:       "yadifa",
		Image:      "yadifa",
		ZoneDir:    "/usr/local/var/zones/masters",
		ConfigPath: "/usr/local/etc/yadifad.conf",
		Config: func(origin, zoneFile string) string {
			return fmt.Sprintf(yadifadConf, origin, zoneFile)
		},
		Stop:  []Command{{Args: []string{"yadifa", "ctrl", "-y", "controller-key:ControlDaemonKey", "shutdown"}, Retry: true}},
		Start: staticStart(Command{Args: []string{"yadifad", "-d"}, Retry: true}),
	},
	"maradns": {
		Name:       "maradns",
		Image:      "maradns",
		ZoneDir:    "/etc/maradns",
		ConfigPath: "/etc/mararc.sh",
		ConfigMode: 0o755,
		// The server binds to the container address, which is only known
		// inside the container, so the mararc file is generated there.
		Config: func(origin, zoneFile string) string {
			return fmt.Sprintf("#!/bin/sh\necho \"ipv4_bind_addresses = \\\"$(hostname -i)\\\"\"\necho 'chroot_dir = \"/etc/maradns\"'\necho 'csv2 = {}'\necho 'csv2[\"%s\"] = \"%s.csv2\"'\n", origin, zoneFile)
		},
		Stop: []Command{cmd("/etc/init.d/maradns", "stop")},
		Start: func(zoneFile string) []Command {
			return []Command{
				cmd("python3", "tocsv2.py", "/etc/maradns/"+zoneFile),
				cmd("sh", "-c", "/etc/mararc.sh > /etc/mararc"),
				cmd("/etc/init.d/maradns", "start"),
			}
		},
	},
	"trustdns": {
		Name:       "trustdns",
		Image:      "trustdns",
		ZoneDir:    "/trust-dns/tests/test-data/named_test_configs",
		ConfigPath: "/trust-dns/tests/test-data/named_test_configs/config.toml",
		Config: func(origin, zoneFile string) string {
			return fmt.Sprintf("[[zones]]\nzone = \"%s\"\nzone_type = \"Primary\"\nfile = \"%s\"\n", origin, zoneFile)
		},
		Stop: []Command{cmd("pkill", "named")},
		Start: staticStart(background("/trust-dns/target/release/named",
			"-c", "/trust-dns/tests/test-data/named_test_configs/config.toml",
			"-z", "/trust-dns/tests/test-data/named_test_configs")),
	},
}

// LookupVariant returns the variant of a server product.
func LookupVariant(name string) (Variant, bool) {
	v, ok := variants[name]
	return v, ok
}
