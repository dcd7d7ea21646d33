package certs

import "testing"

func TestTaggedInfoPersonalIDCatStyle(t *testing.T) {
	info := TaggedInfo("CN=PAU ESCRICH GARCIA  - DNI 47824166J,SERIALNUMBER=IDCES-47824166J,G=PAU,SN=ESCRICH GARCIA,C=ES")
	want := []TaggedAttribute{
		{Title: "Owner", Description: "PAU ESCRICH GARCIA - DNI 47824166J", Translated: true},
		{Title: "Serial number", Description: "47824166J", Translated: true},
		{Title: "Given name", Description: "PAU", Translated: true},
		{Title: "Surname", Description: "ESCRICH GARCIA", Translated: true},
		{Title: "Country", Description: "ES", Translated: true},
	}
	if len(info) != len(want) {
		t.Fatalf("expected %d attributes, got %d: %+v", len(want), len(info), info)
	}
	for i := range want {
		if info[i] != want[i] {
			t.Fatalf("attribute %d: got %+v want %+v", i, info[i], want[i])
		}
	}
}

func TestTaggedInfoRepresentative(t *testing.T) {
	info := TaggedInfo("CN=47824166J PAU ESCRICH (R: B75576322),2.5.4.97=VATES-B75576322,O=SYNERGIZE S.L.")
	if info[1].Title != "Organization ID" || info[1].Description != "B75576322" {
		t.Fatalf("unexpected organization id attribute: %+v", info[1])
	}
	if info[2].Description != "SYNERGIZE S.L." {
		t.Fatalf("unexpected organization: %+v", info[2])
	}
}

func TestTaggedInfoUnknownType(t *testing.T) {
	info := TaggedInfo("CN=Иванов, OGRN=1027700132195, 1.2.3.4=custom")
	if info[1].Title != "OGRN" || !info[1].Translated {
		t.Fatalf("expected OGRN to be translated: %+v", info[1])
	}
	if info[2].Title != "1.2.3.4" || info[2].Translated || info[2].Description != "custom" {
		t.Fatalf("unexpected unknown attribute: %+v", info[2])
	}
}
