package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ato_controller/internal/updater"
)

const defaultKeyBits = 3072

// Release tooling: images are signed offline and the device verifies them
// with the public key built into the binary.

func buildSignCommand() *cobra.Command {
	var keyFile, out string
	cmd := &cobra.Command{
		Use:   "sign <image>",
		Short: "Sign a release image; writes <image>.sig",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image := args[0]
			if out == "" {
				out = image + updater.SignatureSuffix
			}
			keyPEM, err := os.ReadFile(keyFile)
			if err != nil {
				return fmt.Errorf("read key: %w", err)
			}
			signer, err := updater.ParsePrivateKeyPEM(keyPEM)
			if err != nil {
				return err
			}
			digest, size, err := digestFile(image)
			if err != nil {
				return err
			}
			sig, err := updater.Sign(signer, digest)
			if err != nil {
				return fmt.Errorf("sign: %w", err)
			}
			if err := os.WriteFile(out, sig, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed %s (%s) -> %s\n", image, humanize.Bytes(uint64(size)), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&keyFile, "key", "k", "", "PEM private key")
	cmd.Flags().StringVarP(&out, "out", "o", "", "signature output path")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func buildVerifyCommand() *cobra.Command {
	var pubFile, sigFile string
	cmd := &cobra.Command{
		Use:   "verify <image>",
		Short: "Check an image against its signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image := args[0]
			if sigFile == "" {
				sigFile = image + updater.SignatureSuffix
			}
			verifier, err := updater.LoadVerifier(pubFile)
			if err != nil {
				return err
			}
			sig, err := os.ReadFile(sigFile)
			if err != nil {
				return fmt.Errorf("read signature: %w", err)
			}
			digest, _, err := digestFile(image)
			if err != nil {
				return err
			}
			if err := verifier.Verify(digest, sig); err != nil {
				return fmt.Errorf("%s: %w", image, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: signature ok\n", image)
			return nil
		},
	}
	cmd.Flags().StringVarP(&pubFile, "pub", "p", "", "PEM public key (default: built-in key)")
	cmd.Flags().StringVarP(&sigFile, "sig", "s", "", "signature path (default <image>.sig)")
	return cmd
}

func buildKeygenCommand() *cobra.Command {
	var bits int
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an RSA release signing key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := updater.GenerateKey(bits)
			if err != nil {
				return err
			}
			priv, err := updater.EncodePrivateKeyPEM(key)
			if err != nil {
				return err
			}
			pub, err := updater.EncodePublicKeyPEM(key.Public())
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, priv, 0o600); err != nil {
				return err
			}
			if err := os.WriteFile(out+".pub", pub, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s.pub\n", out, out)
			return nil
		},
	}
	cmd.Flags().IntVar(&bits, "bits", defaultKeyBits, "RSA key size")
	cmd.Flags().StringVarP(&out, "out", "o", "update_signing.pem", "private key output path")
	return cmd
}

func digestFile(path string) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = f.Close() }()
	return updater.Digest(f)
}
