package whatsapp

import "encoding/xml"

type twimlResponse struct {
	XMLName  xml.Name `xml:"Response"`
	Messages []string `xml:"Message"`
}

// RenderTwiML serializes reply bodies into the TwiML document Twilio expects
// as the webhook response. An empty slice renders an empty <Response/>,
// which tells Twilio to send nothing.
func RenderTwiML(bodies []string) ([]byte, error) {
	doc, err := xml.Marshal(twimlResponse{Messages: bodies})
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), doc...), nil
}
