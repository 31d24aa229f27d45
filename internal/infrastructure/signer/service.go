// Servicio de firma digital XAdES para comprobantes electrónicos. Inyecta
// <ds:Signature> en el hueco reservado por el serializador: el segundo
// <ext:ExtensionContent> en UBL (DIAN) o como último hijo de la raíz (SRI).

package signer

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"

	"github.com/facturio/facturio-api/internal/domain"
)

// DigitalSignatureService implementa billing.Signer.
type DigitalSignatureService struct{}

// NewDigitalSignatureService crea el servicio.
func NewDigitalSignatureService() *DigitalSignatureService {
	return &DigitalSignatureService{}
}

// Sign firma el XML con la credencial del emisor e inyecta el nodo de firma.
// La Reference apunta al Id "comprobante" de la raíz; el digest cubre el
// documento canonicalizado (C14N), por eso el serializador debe ser
// determinista.
func (s *DigitalSignatureService) Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error) {
	if len(xmlBytes) == 0 {
		return nil, fmt.Errorf("%w: XML vacío", domain.ErrSigningFailed)
	}
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: la credencial debe incluir llave privada RSA", domain.ErrSigningFailed)
	}
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("%w: la credencial no trae certificado", domain.ErrSigningFailed)
	}
	x509Cert, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("%w: parsear certificado: %v", domain.ErrSigningFailed, err)
	}

	// 1) Digest del documento (C14N). Reference URI="#comprobante"
	canonicalDoc, err := canonicalizeXML(xmlBytes)
	if err != nil {
		canonicalDoc = xmlBytes
	}
	docDigest := sha256.Sum256(canonicalDoc)
	docDigestB64 := base64.StdEncoding.EncodeToString(docDigest[:])

	// 2) SignedInfo (C14N, Digest SHA-256, firma RSA PKCS#1 v1.5)
	signedInfoXML := s.buildSignedInfo(docDigestB64)
	canonicalSignedInfo, err := canonicalizeXML([]byte(signedInfoXML))
	if err != nil {
		canonicalSignedInfo = []byte(signedInfoXML)
	}
	signHash := sha256.Sum256(canonicalSignedInfo)
	signatureValue, err := rsa.SignPKCS1v15(nil, priv, crypto.SHA256, signHash[:])
	if err != nil {
		return nil, fmt.Errorf("%w: firmar SignedInfo: %v", domain.ErrSigningFailed, err)
	}
	signatureValueB64 := base64.StdEncoding.EncodeToString(signatureValue)

	// 3) KeyInfo (X509Certificate)
	certB64 := base64.StdEncoding.EncodeToString(x509Cert.Raw)

	// 4) QualifyingProperties (SigningTime, SigningCertificate, política)
	signingTime := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	certDigestB64, issuerName, serialHex := CertDigestAndIssuerSerial(x509Cert)
	signatureXML := s.buildFullSignature(signedInfoXML, signatureValueB64, certB64, signingTime, certDigestB64, issuerName, serialHex)

	// 5) Inyectar en el hueco del documento
	return s.injectSignature(xmlBytes, signatureXML)
}

func canonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func (s *DigitalSignatureService) buildSignedInfo(docDigestB64 string) string {
	uri := "#" + DocumentElementID
	var sb strings.Builder
	sb.WriteString(`<ds:SignedInfo xmlns:ds="` + NamespaceDS + `">`)
	sb.WriteString(`<ds:CanonicalizationMethod Algorithm="` + AlgC14N + `"/>`)
	sb.WriteString(`<ds:SignatureMethod Algorithm="` + AlgRSASHA256 + `"/>`)
	sb.WriteString(`<ds:Reference URI="` + uri + `">`)
	sb.WriteString(`<ds:Transforms><ds:Transform Algorithm="` + TransformEnveloped + `"/>`)
	sb.WriteString(`<ds:Transform Algorithm="` + AlgC14N + `"/></ds:Transforms>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<ds:DigestValue>` + docDigestB64 + `</ds:DigestValue>`)
	sb.WriteString(`</ds:Reference>`)
	sb.WriteString(`</ds:SignedInfo>`)
	return sb.String()
}

func (s *DigitalSignatureService) buildFullSignature(signedInfoXML, signatureValueB64, certB64, signingTime, certDigestB64, issuerName, serialHex string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:Signature xmlns:ds="` + NamespaceDS + `" xmlns:xades="` + NamespaceXAdES + `">`)
	sb.WriteString(signedInfoXML)
	sb.WriteString(`<ds:SignatureValue>` + signatureValueB64 + `</ds:SignatureValue>`)
	sb.WriteString(`<ds:KeyInfo><ds:X509Data><ds:X509Certificate>` + certB64 + `</ds:X509Certificate></ds:X509Data></ds:KeyInfo>`)
	sb.WriteString(`<ds:Object><xades:QualifyingProperties>`)
	sb.WriteString(`<xades:SignedProperties Id="signed-props">`)
	sb.WriteString(`<xades:SignedSignatureProperties>`)
	sb.WriteString(`<xades:SigningTime>` + signingTime + `</xades:SigningTime>`)
	sb.WriteString(`<xades:SigningCertificate><xades:Cert><xades:CertDigest><ds:DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<ds:DigestValue>` + certDigestB64 + `</ds:DigestValue></xades:CertDigest>`)
	sb.WriteString(`<xades:IssuerSerial><ds:X509IssuerName>` + escapeXML(issuerName) + `</ds:X509IssuerName><ds:X509SerialNumber>` + serialHex + `</ds:X509SerialNumber></xades:IssuerSerial></xades:Cert></xades:SigningCertificate>`)
	sb.WriteString(`<xades:SignaturePolicyIdentifier><xades:SignaturePolicyId><xades:SigPolicyId><xades:Identifier>` + SignaturePolicyURLV2 + `</xades:Identifier></xades:SigPolicyId>`)
	if SigPolicyHashDigest != "" {
		sb.WriteString(`<xades:SigPolicyHash><ds:DigestMethod Algorithm="` + AlgSHA256 + `"/><ds:DigestValue>` + SigPolicyHashDigest + `</ds:DigestValue></xades:SigPolicyHash>`)
	}
	sb.WriteString(`</xades:SignaturePolicyId></xades:SignaturePolicyIdentifier>`)
	sb.WriteString(`</xades:SignedSignatureProperties></xades:SignedProperties></xades:QualifyingProperties></ds:Object>`)
	sb.WriteString(`</ds:Signature>`)
	return sb.String()
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

// injectSignature coloca la firma en el segundo ext:ExtensionContent si el
// documento es UBL; si no, la agrega como último hijo de la raíz.
func (s *DigitalSignatureService) injectSignature(xmlBytes []byte, signatureXML string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("%w: parsear XML: %v", domain.ErrSigningFailed, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: documento sin raíz", domain.ErrSigningFailed)
	}

	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(signatureXML); err != nil {
		return nil, fmt.Errorf("%w: parsear Signature: %v", domain.ErrSigningFailed, err)
	}
	sigRoot := sigDoc.Root()
	if sigRoot == nil {
		return nil, fmt.Errorf("%w: firma vacía", domain.ErrSigningFailed)
	}

	if target := findSecondExtensionContent(root); target != nil {
		target.AddChild(sigRoot)
	} else {
		root.AddChild(sigRoot)
	}

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("%w: serializar documento firmado: %v", domain.ErrSigningFailed, err)
	}
	return out.Bytes(), nil
}

func findSecondExtensionContent(root *etree.Element) *etree.Element {
	var ublExt *etree.Element
	for _, child := range root.ChildElements() {
		if localTag(child) == "UBLExtensions" {
			ublExt = child
			break
		}
	}
	if ublExt == nil {
		return nil
	}
	count := 0
	for _, ext := range ublExt.ChildElements() {
		if localTag(ext) != "UBLExtension" {
			continue
		}
		for _, ec := range ext.ChildElements() {
			if localTag(ec) == "ExtensionContent" {
				count++
				if count == 2 {
					return ec
				}
			}
		}
	}
	return nil
}

func localTag(el *etree.Element) string {
	if idx := strings.Index(el.Tag, ":"); idx != -1 {
		return el.Tag[idx+1:]
	}
	return el.Tag
}
