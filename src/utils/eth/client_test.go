package eth

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestEthTestSuite(t *testing.T) {
	suite.Run(t, new(EthTestSuite))
}

type EthTestSuite struct {
	suite.Suite
}

func (s *EthTestSuite) TestChecksumAddress() {
	// WETH on mainnet, canonical EIP-55 form
	out, err := ChecksumAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")
	require.Nil(s.T(), err)
	require.Equal(s.T(), "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", out)

	// Already checksummed input stays unchanged
	out, err = ChecksumAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	require.Nil(s.T(), err)
	require.Equal(s.T(), "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", out)

	_, err = ChecksumAddress("not-an-address")
	require.NotNil(s.T(), err)
}

func (s *EthTestSuite) TestKeccak256Hex() {
	// Known digest of the empty input
	require.Equal(s.T(),
		"c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		Keccak256Hex([]byte{}))
}

func (s *EthTestSuite) TestNormalizeBytecode() {
	require.Equal(s.T(), "60806040", NormalizeBytecode("0x60806040"))
	require.Equal(s.T(), "60806040", NormalizeBytecode("60806040"))
	require.Equal(s.T(), "abcdef", NormalizeBytecode("0xABCDEF"))

	decoded, err := DecodeBytecode("0x6080")
	require.Nil(s.T(), err)
	require.Equal(s.T(), []byte{0x60, 0x80}, decoded)
}
