/*
Copyright 2026 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package notification

import (
	"bytes"
	"text/template"

	"github.com/baggageops/core/pkg/orchestrator"
)

// templateSpec is a subject/body pair in Go template syntax, keyed by
// template id.
type templateSpec struct {
	subject string
	body    string
}

var defaultTemplates = map[string]templateSpec{
	"bag-delayed": {
		subject: "Your bag {{.BagTag}} is delayed",
		body:    "We're sorry — your bag is running behind schedule. We'll update you as it moves.",
	},
	"bag-mishandled-low": {
		subject: "An update on your bag {{.BagTag}}",
		body:    "Your bag needs a little extra handling. Our team is on it.",
	},
	"bag-mishandled-high": {
		subject: "Important update on your bag {{.BagTag}}",
		body:    "Your bag has been flagged for priority handling. A team member may contact you shortly.",
	},
	"bag-offloaded": {
		subject: "Your bag {{.BagTag}} was offloaded",
		body:    "Your bag did not make your connection. We're arranging its next available routing.",
	},
	"bag-arrived": {
		subject: "Your bag {{.BagTag}} has arrived",
		body:    "Good news — your bag has arrived at its destination.",
	},
	"bag-claimed": {
		subject: "Your bag {{.BagTag}} was claimed",
		body:    "Your bag has been recorded as claimed. Thanks for flying with us.",
	},
}

// TemplateRenderer renders defaultTemplates (or an override set
// supplied by the caller) with text/template, falling back to the
// template id itself if a template's Go template syntax is malformed —
// a malformed template must never block delivery.
type TemplateRenderer struct {
	templates map[string]templateSpec
}

// NewTemplateRenderer builds a TemplateRenderer over defaultTemplates.
func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{templates: defaultTemplates}
}

func (r *TemplateRenderer) Render(templateID string, req orchestrator.NotificationRequest) (subject, body string) {
	spec, ok := r.templates[templateID]
	if !ok {
		return templateID, templateID
	}

	data := struct{ BagTag string }{BagTag: req.BagTag}

	subject = renderOrFallback(spec.subject, data, spec.subject)
	body = renderOrFallback(spec.body, data, spec.body)
	return subject, body
}

func renderOrFallback(text string, data interface{}, fallback string) string {
	tmpl, err := template.New("notification").Parse(text)
	if err != nil {
		return fallback
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fallback
	}
	return buf.String()
}
