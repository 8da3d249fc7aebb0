package network

import (
	"encoding/binary"
	"fmt"
	"net"
)

// subnetBits is how many extra prefix bits each subnet takes from the VPC
// CIDR. A /16 VPC yields /20 subnets.
const subnetBits = 4

// SubnetCIDRs carves the VPC CIDR into per-AZ public and private subnet
// CIDRs. Public subnets take the first azCount chunks, private the next.
func SubnetCIDRs(vpcCIDR string, azCount int) (public, private []string, err error) {
	_, ipNet, err := net.ParseCIDR(vpcCIDR)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid VPC CIDR %q: %w", vpcCIDR, err)
	}

	prefix, bits := ipNet.Mask.Size()
	if bits != 32 {
		return nil, nil, fmt.Errorf("VPC CIDR %q is not IPv4", vpcCIDR)
	}
	newPrefix := prefix + subnetBits
	if newPrefix > 28 {
		return nil, nil, fmt.Errorf("VPC CIDR %q too small to carve subnets", vpcCIDR)
	}

	chunks := 1 << subnetBits
	if azCount*2 > chunks {
		return nil, nil, fmt.Errorf("VPC CIDR %q cannot hold %d subnets", vpcCIDR, azCount*2)
	}

	base := binary.BigEndian.Uint32(ipNet.IP.To4())
	chunkSize := uint32(1) << (32 - newPrefix)

	nth := func(i int) string {
		ip := make(net.IP, 4)
		binary.BigEndian.PutUint32(ip, base+uint32(i)*chunkSize)
		return fmt.Sprintf("%s/%d", ip, newPrefix)
	}

	for i := 0; i < azCount; i++ {
		public = append(public, nth(i))
		private = append(private, nth(azCount+i))
	}
	return public, private, nil
}
