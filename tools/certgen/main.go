// Package main generates a Certificate Authority (CA), a server
// certificate and a sample client certificate, writing them to files
// under the "certs" directory.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"
)

func main() {
	subject := flag.String("subject", "alice", "subject id (CN) for the client certificate")
	contact := flag.String("contact", "alice@example.com", "contact email for the client certificate")
	flag.Parse()

	// certs directory for storing generated certificates and keys
	dir := "certs"
	_ = os.MkdirAll(dir, 0755)

	// 1. Generate CA certificate and key
	caCert, caKey := generateCA()
	writeCertAndKey(dir+"/ca.crt", dir+"/ca.key", caCert, caKey)

	// 2. Generate server certificate/key signed by CA
	serverCert, serverKey := generateCert("localhost", "", caCert, caKey)
	writeCertAndKey(dir+"/server.crt", dir+"/server.key", serverCert, serverKey)

	// 3. Generate client certificate/key signed by CA. The CN and email
	// become the vault identity the encryption key is derived from.
	clientCert, clientKey := generateCert(*subject, *contact, caCert, caKey)
	writeCertAndKey(dir+"/client.crt", dir+"/client.key", clientCert, clientKey)

	fmt.Println("certificates generated into ./certs")
}

// generateCA creates a self-signed CA certificate and its RSA private key.
// The CA is valid for 10 years and can sign other certificates.
func generateCA() (*x509.Certificate, *rsa.PrivateKey) {
	ca := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName: "credvault CA",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(10, 0, 0),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	der, err := x509.CreateCertificate(rand.Reader, ca, ca, &key.PublicKey, key)
	if err != nil {
		panic(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		panic(err)
	}
	return cert, key
}

// generateCert creates a certificate for the given common name, signed
// by the CA. A non-empty email is embedded as the contact address.
func generateCert(commonName, email string, caCert *x509.Certificate, caKey *rsa.PrivateKey) (*x509.Certificate, *rsa.PrivateKey) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		panic(err)
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: commonName,
		},
		NotBefore:   time.Now(),
		NotAfter:    time.Now().AddDate(1, 0, 0),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		DNSNames:    []string{commonName},
	}
	if email != "" {
		template.EmailAddresses = []string{email}
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	der, err := x509.CreateCertificate(rand.Reader, template, caCert, &key.PublicKey, caKey)
	if err != nil {
		panic(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		panic(err)
	}
	return cert, key
}

// writeCertAndKey PEM-encodes a certificate and key pair to disk.
func writeCertAndKey(certPath, keyPath string, cert *x509.Certificate, key *rsa.PrivateKey) {
	certOut, err := os.Create(certPath)
	if err != nil {
		panic(err)
	}
	defer certOut.Close()
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}); err != nil {
		panic(err)
	}

	keyOut, err := os.OpenFile(keyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		panic(err)
	}
	defer keyOut.Close()
	der := x509.MarshalPKCS1PrivateKey(key)
	if err := pem.Encode(keyOut, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}); err != nil {
		panic(err)
	}
}
