package tools

import (
	"fmt"
	"math/rand"
)

// TechSupportLabel is the server label of the tech support tools
const TechSupportLabel = "tech_support"

// employeeTool covers the tools whose output only varies by employee name and a three-way status
func employeeTool(name, description, title string, withEmail bool, statuses func(employee string) [3]string) Tool {
	params := []string{"employeeName"}
	if withEmail {
		params = append(params, "emailAddress")
	}
	return Tool{
		Name:        name,
		Description: description,
		Params:      params,
		render: func(r *rand.Rand, args map[string]any) string {
			employee := arg(args, "employeeName")
			fields := [][2]string{{"Employee Name", employee}}
			if withEmail {
				fields = append(fields, [2]string{"Email Address", arg(args, "emailAddress")})
			}
			s := statuses(employee)
			return mocked(title, fields, pick(r, s[0], s[1], s[2]+" A support request has been raised. Ticket: "+ticket(r)+"."))
		},
	}
}

// softwareTool covers the tools keyed by employee and software name
func softwareTool(name, description, title string, statuses func(employee, software string) [3]string) Tool {
	return Tool{
		Name:        name,
		Description: description,
		Params:      []string{"employeeName", "softwareName"},
		render: func(r *rand.Rand, args map[string]any) string {
			employee, software := arg(args, "employeeName"), arg(args, "softwareName")
			s := statuses(employee, software)
			fields := [][2]string{{"Employee Name", employee}, {"Software Name", software}}
			return mocked(title, fields, pick(r, s[0], s[1], s[2]+" A support request has been raised. Ticket: "+ticket(r)+"."))
		},
	}
}

// TechSupport returns the mocked IT help desk tools
func TechSupport(seed int64) *Catalog {
	return NewCatalog(TechSupportLabel, seed,
		employeeTool("send_welcome_email", "Send a welcome email to a new employee.", "Welcome Email Status", true,
			func(e string) [3]string {
				return [3]string{
					fmt.Sprintf("A welcome email has been successfully sent to %s.", e),
					fmt.Sprintf("Welcome email to %s is queued and will be sent shortly.", e),
					fmt.Sprintf("Failed to send welcome email to %s.", e),
				}
			}),
		employeeTool("set_up_office365_account", "Set up an Office 365 account for an employee.", "Office 365 Account Setup", true,
			func(e string) [3]string {
				return [3]string{
					fmt.Sprintf("Office 365 account has been successfully set up for %s.", e),
					fmt.Sprintf("Office 365 account setup for %s is in progress.", e),
					fmt.Sprintf("Failed to set up Office 365 account for %s.", e),
				}
			}),
		employeeTool("reset_password", "Reset the password of an employee.", "Password Reset", false,
			func(e string) [3]string {
				return [3]string{
					fmt.Sprintf("The password for %s has been successfully reset.", e),
					fmt.Sprintf("Password reset for %s is pending approval.", e),
					fmt.Sprintf("Failed to reset password for %s.", e),
				}
			}),
		employeeTool("setup_vpn_access", "Set up VPN access for an employee.", "VPN Access Setup", false,
			func(e string) [3]string {
				return [3]string{
					fmt.Sprintf("VPN access has been successfully set up for %s.", e),
					fmt.Sprintf("VPN setup for %s is in progress.", e),
					fmt.Sprintf("Failed to set up VPN access for %s.", e),
				}
			}),
		employeeTool("manage_data_backup", "Configure data backup for an employee.", "Data Backup Status", false,
			func(e string) [3]string {
				return [3]string{
					fmt.Sprintf("Data backup has been successfully configured for %s.", e),
					fmt.Sprintf("Data backup for %s is scheduled for tonight.", e),
					fmt.Sprintf("Failed to configure data backup for %s.", e),
				}
			}),
		softwareTool("install_software", "Install software for an employee.", "Software Installation",
			func(e, s string) [3]string {
				return [3]string{
					fmt.Sprintf("The software '%s' has been successfully installed for %s.", s, e),
					fmt.Sprintf("Installation of '%s' for %s is pending license approval.", s, e),
					fmt.Sprintf("Failed to install '%s' for %s.", s, e),
				}
			}),
		softwareTool("update_software", "Update software for an employee.", "Software Update",
			func(e, s string) [3]string {
				return [3]string{
					fmt.Sprintf("The software '%s' has been successfully updated for %s.", s, e),
					fmt.Sprintf("Update for '%s' is scheduled for %s.", s, e),
					fmt.Sprintf("Failed to update '%s' for %s.", s, e),
				}
			}),
		Tool{
			Name:        "support_procurement_tech",
			Description: "Provide technical specifications for equipment procurement.",
			Params:      []string{"equipmentDetails"},
			render: func(r *rand.Rand, args map[string]any) string {
				d := arg(args, "equipmentDetails")
				return mocked("Technical Specifications Status", [][2]string{{"Equipment Details", d}}, pick(r,
					fmt.Sprintf("Technical specifications for the following equipment have been provided: %s.", d),
					fmt.Sprintf("Pending approval for the technical specifications of: %s.", d),
					fmt.Sprintf("Failed to provide specifications for %s. Item not found in inventory. A support request has been raised. Ticket: %s.", d, ticket(r)),
				))
			},
		},
		Tool{
			Name:        "configure_printer",
			Description: "Configure a printer for an employee.",
			Params:      []string{"employeeName", "printerModel"},
			render: func(r *rand.Rand, args map[string]any) string {
				e, p := arg(args, "employeeName"), arg(args, "printerModel")
				return mocked("Printer Configuration Status", [][2]string{{"Employee Name", e}, {"Printer Model", p}}, pick(r,
					fmt.Sprintf("The printer '%s' has been successfully configured for %s.", p, e),
					fmt.Sprintf("Configuration of printer '%s' for %s is pending.", p, e),
					fmt.Sprintf("Failed to configure printer '%s' for %s. Printer not found. A support request has been raised. Ticket: %s.", p, e, ticket(r)),
				))
			},
		},
		Tool{
			Name:        "manage_software_licenses",
			Description: "Manage the licenses of a software product.",
			Params:      []string{"softwareName", "licenseCount"},
			render: func(r *rand.Rand, args map[string]any) string {
				s, n := arg(args, "softwareName"), arg(args, "licenseCount")
				return mocked("Software Licenses Management Status", [][2]string{{"Software Name", s}, {"License Count", n}}, pick(r,
					fmt.Sprintf("%s licenses for the software '%s' have been successfully managed.", n, s),
					fmt.Sprintf("Management of %s licenses for '%s' is under review.", n, s),
					fmt.Sprintf("Failed to manage licenses for '%s'. License server unreachable. A support request has been raised. Ticket: %s.", s, ticket(r)),
				))
			},
		},
		Tool{
			Name:        "manage_network_security",
			Description: "Manage network security protocols.",
			render: func(r *rand.Rand, args map[string]any) string {
				return mocked("Network Security Management Status", nil, pick(r,
					"Network security protocols have been successfully managed.",
					"Network security management is under review.",
					"Failed to manage network security. Immediate attention required. A support request has been raised. Ticket: "+ticket(r)+".",
				))
			},
		},
	)
}
