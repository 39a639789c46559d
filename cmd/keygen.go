package cmd

import (
	"github.com/haveachin/floodgate/pkg/floodgate/envelope"
	"github.com/spf13/cobra"
)

var (
	privateKeyPath = "key.pem"
	publicKeyPath  = "public.pem"
	keyBits        = envelope.DefaultKeyBits

	keygenCmd = &cobra.Command{
		Use:   "keygen",
		Short: "Generates the key pair that seals and opens encrypted data",
		Long: "Generates the key pair that seals and opens encrypted data.\n" +
			"The private key stays with the gateway, every hop gets the public key.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := envelope.GenerateKey(keyBits)
			if err != nil {
				return err
			}

			if err := envelope.WriteKeyPair(privateKeyPath, publicKeyPath, key); err != nil {
				return err
			}

			cmd.Printf("wrote %s and %s\n", privateKeyPath, publicKeyPath)
			return nil
		},
	}
)

func init() {
	stringFlag(keygenCmd.Flags().StringVarP, &privateKeyPath, "private-key", "", "PRIVATE_KEY", "path the private key is written to")
	stringFlag(keygenCmd.Flags().StringVarP, &publicKeyPath, "public-key", "", "PUBLIC_KEY", "path the public key is written to")
	keygenCmd.Flags().IntVarP(&keyBits, "bits", "b", keyBits, "size of the RSA key")
}
