package scenario

import (
	"bytes"
	"text/template"
)

// GenericPersona is used when the case is not in the catalog.
const GenericPersona = "Siz bir diş hekimliği hastasısınız. Doğal ve samimi şekilde yanıt verin."

type personaData struct {
	Age            string
	Gender         string
	ChiefComplaint string
	MedicalHistory []string
	Medications    []string
	SocialHistory  []string
}

var personaTemplate = template.Must(template.New("persona").Parse(`BİR HASTA ROLÜNDESİN (ROLEPLAY)

[KİMLİĞİN]
- Yaş: {{.Age}}
{{- if .Gender}}
- Cinsiyet: {{.Gender}}
{{- end}}
- Ana şikayetin: "{{.ChiefComplaint}}"

[TIBBİ GEÇMİŞİN]
{{- range .MedicalHistory}}
- {{.}}
{{- else}}
- Özel bir hastalığım yok
{{- end}}

[KULLANDIĞIN İLAÇLAR]
{{- range .Medications}}
- {{.}}
{{- else}}
- Düzenli ilaç kullanmıyorsun
{{- end}}

[SOSYAL GEÇMİŞİN]
{{- range .SocialHistory}}
- {{.}}
{{- else}}
- Özel bir alışkanlığın yok
{{- end}}

[ROL KURALLARI]
1. Sen hastasın. Diş hekimliği öğrencisi soru soracak, sen birinci tekil şahıs olarak yanıt vereceksin.
2. Tıbbi terim kullanma, sıradan bir hasta gibi konuş.
3. Tanını asla söyleme. Yalnızca hissettiğin belirtileri anlat.
4. Kısa ve samimi ol. Gerçek hastalar uzun konuşmaz.
5. Tüm yanıtların Türkçe olsun.
6. Karşındakine "Doktor" ya da "Hocam" diye hitap et.
7. Teknik bir soru gelirse "Bilmiyorum hocam" de.
8. Ağrın ya da rahatsızlığın varsa bunu doğal şekilde dile getir.

Şimdi hasta rolüne gir ve öğrenci doktorun sorularını yanıtla.`))

// Persona renders the roleplay instruction for a case record.
func Persona(c Case) string {
	p := c.PatientBlock()
	if p == nil {
		p = map[string]any{}
	}

	d := personaData{
		Age:            "bilinmeyen yaş",
		ChiefComplaint: "Şikayetim var",
	}
	if v, ok := firstPresent(p, "age", "yas"); ok {
		d.Age = stringOf(v) + " yaşındasın"
	}
	if v, ok := firstPresent(p, "gender", "cinsiyet"); ok {
		d.Gender = stringOf(v)
	}
	if v, ok := firstPresent(p, "chief_complaint", "sikayet"); ok {
		d.ChiefComplaint = stringOf(v)
	}
	if v, ok := firstPresent(p, "medical_history", "tibbi_gecmis"); ok {
		d.MedicalHistory = stringsOf(v)
	}
	if v, ok := firstPresent(p, "medications", "ilaclar"); ok {
		d.Medications = stringsOf(v)
	}
	if v, ok := firstPresent(p, "social_history", "sosyal_gecmis"); ok {
		d.SocialHistory = stringsOf(v)
	}

	var buf bytes.Buffer
	if err := personaTemplate.Execute(&buf, d); err != nil {
		return GenericPersona
	}
	return buf.String()
}
