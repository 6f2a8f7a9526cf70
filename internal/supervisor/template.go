package supervisor

import (
	"bytes"
	"fmt"
	"text/template"

	"devservices/internal/config"

	"github.com/Masterminds/sprig/v3"
)

const processesTemplate = `; generated by devservices, do not edit
{{- range .Programs }}

[program:{{ .Name }}]
command={{ .Command }}
directory={{ get .Options "directory" | default $.Dir }}
autostart=false
{{- $opts := omit .Options "autostart" "command" "directory" }}
{{- range $k := keys $opts | sortAlpha }}
{{ $k }}={{ get $opts $k }}
{{- end }}
{{- end }}

[unix_http_server]
file={{ .Socket }}

[supervisord]
pidfile={{ .PIDFile }}
logfile={{ .LogFile }}

[supervisorctl]
serverurl=unix://{{ .Socket }}

[rpcinterface:supervisor]
supervisor.rpcinterface_factory=supervisor.rpcinterface:make_main_rpcinterface
`

var processes = template.Must(template.New("processes").Funcs(sprig.TxtFuncMap()).Parse(processesTemplate))

type templateProgram struct {
	Name    string
	Command string
	Options map[string]interface{}
}

type templateData struct {
	Dir      string
	Socket   string
	PIDFile  string
	LogFile  string
	Programs []templateProgram
}

func render(data templateData, programs []config.Program) ([]byte, error) {
	for _, p := range programs {
		opts := make(map[string]interface{}, len(p.Options))
		for k, v := range p.Options {
			opts[k] = v
		}
		data.Programs = append(data.Programs, templateProgram{Name: p.Name, Command: p.Command, Options: opts})
	}

	var buf bytes.Buffer
	if err := processes.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render supervisor config: %w", err)
	}
	return buf.Bytes(), nil
}
