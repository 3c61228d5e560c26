package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/door-monitor/internal/door"
	"github.com/sweeney/door-monitor/internal/status"
)

// duration renders d as "1d 2h 3m 4s", dropping leading zero units.
func duration(d time.Duration) string {
	d = d.Truncate(time.Second)
	days := int(d.Hours()) / 24
	h := int(d.Hours()) % 24
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
	}
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"duration": duration,
	"clock": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format("2006-01-02T15:04:05Z")
	},
	"doorClass": func(s door.State) string {
		switch s {
		case door.StateOpen:
			return "open"
		case door.StateClosed:
			return "closed"
		}
		return "unknown"
	},
	"onOff": func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Door Monitor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.open { color: #c60; font-weight: bold; }
.closed { color: green; font-weight: bold; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.alert { color: red; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Door Monitor</h1>

<h2>Door</h2>
<table>
<tr><th>State</th><td id="door-state" class="{{doorClass .Door.Door}}">{{.Door.Door}}</td></tr>
{{if not .Door.OpenedAt.IsZero}}<tr><th>Open for</th><td>{{duration .OpenFor}} (since {{clock .Door.OpenedAt}})</td></tr>{{end}}
<tr><th>Lights</th><td class="{{onOff .Door.Lights}}">{{onOff .Door.Lights}}</td></tr>
<tr><th>Garage light</th><td class="{{onOff .Door.GarageLight}}">{{onOff .Door.GarageLight}}</td></tr>
{{if .Quiet}}<tr><th>Quiet until</th><td>{{clock .Door.QuietUntil}}</td></tr>{{end}}
</table>

<h2>Motion</h2>
<table>
<tr><th>Alert</th><td id="alert" class="{{if .Door.Alert}}alert{{else}}off{{end}}">{{if .Door.Alert}}ACTIVE since {{clock .Door.AlertSince}}{{else}}clear{{end}}</td></tr>
<tr><th>Pending motion</th><td>{{.Door.MotionCount}}</td></tr>
<tr><th>PIR</th><td class="{{onOff .Door.PIRActive}}">{{onOff .Door.PIRActive}}</td></tr>
<tr><th>Last event</th><td>{{if .Door.LastEvent}}{{.Door.LastEvent}} at {{clock .Door.LastEventAt}}{{else}}-{{end}}</td></tr>
</table>

{{if .Inputs}}<h2>Inputs</h2>
<table>
{{range $name, $v := .Inputs}}<tr><th>{{$name}}</th><td class="{{if $v}}on{{else}}off{{end}}">{{if $v}}HIGH{{else}}LOW{{end}}</td></tr>
{{end}}<tr><th>Sampled</th><td>{{clock .InputsAt}}</td></tr>
</table>
{{end}}
{{if .Recent}}<h2>Recent</h2>
<table>
{{range .Recent}}<tr><th>{{clock .Timestamp}}</th><td>{{.Type}}{{if .OpenFor}} ({{duration .OpenFor}}){{end}}</td></tr>
{{end}}</table>
{{end}}
<h2>Event Counts</h2>
<table>
{{range $name, $n := .Door.Counts}}<tr><th>{{$name}}</th><td>{{$n}}</td></tr>
{{else}}<tr><td>none yet</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
<tr><th>Data log</th><td>{{if .Config.DataLog}}{{.DataLog.Sent}} sent, {{.DataLog.Failed}} failed, {{.DataLog.Dropped}} dropped{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{duration .Uptime}}</td></tr>
<tr><th>Started</th><td>{{clock .StartTime}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>GPIO</th><td>{{.Config.GPIO}}</td></tr>
<tr><th>Triggers</th><td>{{.Config.Triggers}}</td></tr>
<tr><th>Actions</th><td>{{.Config.Actions}}</td></tr>
<tr><th>Remote signals</th><td>{{if .Config.RemoteSignals}}enabled{{else}}disabled{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Templates cannot call methods with arguments, so derived values are
	// computed here.
	data := struct {
		status.Snapshot
		Uptime  time.Duration
		OpenFor time.Duration
		Quiet   bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Quiet:    snap.Door.QuietUntil.After(snap.Now),
	}
	if !snap.Door.OpenedAt.IsZero() {
		data.OpenFor = snap.Now.Sub(snap.Door.OpenedAt)
	}
	return indexTmpl.Execute(w, data)
}
