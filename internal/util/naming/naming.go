// Package naming provides consistent naming functions for AWS resources.
//
// Resource names follow the pattern {environment}-{type} so that every
// resource belonging to a demo environment can be identified and cleaned up
// by name or by the matching Name tag.
package naming

import "fmt"

func VPC(env, side string) string {
	return fmt.Sprintf("%s-%s-vpc", env, side)
}

func Subnet(env, side, visibility string, index int) string {
	return fmt.Sprintf("%s-%s-%s-%d", env, side, visibility, index)
}

func InternetGateway(env, side string) string {
	return fmt.Sprintf("%s-%s-igw", env, side)
}

func NatGateway(env, side string) string {
	return fmt.Sprintf("%s-%s-nat", env, side)
}

func RouteTable(env, side, visibility string) string {
	return fmt.Sprintf("%s-%s-%s-rt", env, side, visibility)
}

func Peering(env string) string {
	return fmt.Sprintf("%s-peering", env)
}

func MeshSecurityGroup(env, side string) string {
	return fmt.Sprintf("%s-%s-mesh", env, side)
}

func ECSCluster(env string) string {
	return fmt.Sprintf("%s-ecs", env)
}

func EKSCluster(env string) string {
	return fmt.Sprintf("%s-eks", env)
}

func Nodegroup(env string) string {
	return fmt.Sprintf("%s-nodes", env)
}

func TaskFamily(env, service string) string {
	return fmt.Sprintf("%s-%s", env, service)
}

func LogGroup(env, service string) string {
	return fmt.Sprintf("/ecs/%s/%s", env, service)
}

func TaskExecutionRole(env string) string {
	return fmt.Sprintf("%s-task-execution", env)
}

func TaskRole(env string) string {
	return fmt.Sprintf("%s-task", env)
}

func EKSClusterRole(env string) string {
	return fmt.Sprintf("%s-eks-cluster", env)
}

func NodeRole(env string) string {
	return fmt.Sprintf("%s-eks-node", env)
}
